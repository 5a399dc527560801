package form

// Variant selects how a notification is rendered.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient, non-blocking message for the user.
type Notification struct {
	Variant     Variant `json:"variant"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
}

// Notifier delivers notifications to whoever renders the form.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

const (
	msgCreated          = "Task created successfully!"
	msgUpdated          = "Task updated successfully!"
	msgSuggested        = "Title suggestion applied!"
	msgWriteFailed      = "An error occurred"
	msgTryAgain         = "Please try again."
	msgDescriptionShort = "Please provide a longer description to suggest a title."
)

// Messages shown by card-level actions outside the form.
const (
	MsgDeleted      = "Task deleted successfully!"
	MsgDeleteFailed = "Error deleting task"
	MsgWriteFailed  = msgWriteFailed
	MsgTryAgain     = msgTryAgain
)
