package timing

// Events announced to live observers.
const (
	EventTimeCreated   = "time.created"
	EventResultCreated = "result.created"
	EventResultPatched = "result.patched"
)

// Publisher receives notifications; it must not block the caller.
type Publisher interface {
	Publish(event string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
