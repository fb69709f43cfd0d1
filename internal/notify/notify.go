package notify

type Variant string

const (
	Success Variant = "success"
	Error   Variant = "error"
	Warning Variant = "warning"
	Info    Variant = "info"
)

// Notification is a short user-facing message shown once.
type Notification struct {
	Variant Variant `json:"variant"`
	Message string  `json:"message"`
}

// Notifications collects messages in the order they were raised.
type Notifications []Notification

func (n *Notifications) Add(v Variant, msg string) {
	*n = append(*n, Notification{Variant: v, Message: msg})
}

func (n *Notifications) Success(msg string) { n.Add(Success, msg) }
func (n *Notifications) Error(msg string)   { n.Add(Error, msg) }
func (n *Notifications) Warning(msg string) { n.Add(Warning, msg) }

// Has reports whether a notification of the given variant was raised.
func (n Notifications) Has(v Variant) bool {
	for _, item := range n {
		if item.Variant == v {
			return true
		}
	}
	return false
}
