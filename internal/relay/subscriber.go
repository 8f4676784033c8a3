package relay

// Subscriber is a live dashboard connection entitled to receive broadcast
// events while connected. Implementations must make Send safe for
// concurrent use and must never block: a subscriber that cannot accept an
// event returns an error and is evicted by the bus.
type Subscriber interface {
	// ID returns the unique connection identifier.
	ID() string

	// Send hands an event to the subscriber for delivery. It returns an
	// error if the subscriber is closed or cannot keep up.
	Send(event Event) error

	// Close releases the subscriber's transport resources. Safe to call
	// more than once.
	Close() error
}

// Bus is the in-memory fan-out hub. Publish delivers an event to every
// subscriber registered at the moment of the call, using a snapshot of
// the subscriber set; a subscriber joining during fan-out does not
// receive that publish. Delivery failures are contained inside the bus.
type Bus interface {
	Subscribe(sub Subscriber)
	Unsubscribe(id string)
	Publish(event Event)
	SubscriberCount() int
}
