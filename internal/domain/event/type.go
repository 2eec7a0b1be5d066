package event

// Type identifies the type of domain event
type Type string

const (
	TypeGenerationRequested Type = "generation.requested"
	TypeGenerationCompleted Type = "generation.completed"
	TypeGenerationLocked    Type = "generation.locked"
	TypeGenerationFailed    Type = "generation.failed"
	TypeGenerationSent      Type = "generation.sent"
	TypeTemplateUploaded    Type = "template.uploaded"
	TypeTemplateActivated   Type = "template.activated"
	TypeComplianceChecked   Type = "compliance.checked"
	TypeIntegrityMismatch   Type = "integrity.mismatch"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeGenerationRequested,
		TypeGenerationCompleted,
		TypeGenerationLocked,
		TypeGenerationFailed,
		TypeGenerationSent,
		TypeTemplateUploaded,
		TypeTemplateActivated,
		TypeComplianceChecked,
		TypeIntegrityMismatch:
		return true
	default:
		return false
	}
}

// Subject reports which aggregate SubjectID refers to
func (t Type) Subject() string {
	switch t {
	case TypeTemplateUploaded, TypeTemplateActivated, TypeComplianceChecked:
		return "template"
	default:
		return "generation"
	}
}
