package workflow

// Trigger is an event that moves a generation between states
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerComplete Trigger = "COMPLETE"
	TriggerLock     Trigger = "LOCK"
	TriggerFail     Trigger = "FAIL"
	TriggerSend     Trigger = "SEND"
	TriggerArchive  Trigger = "ARCHIVE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
