package core

// Client is one connected socket as seen by the hub. Rooms is owned by the
// hub's run loop and must not be touched elsewhere.
type Client struct {
	ID     string
	UserID int64
	Name   string
	Events chan *Event
	Rooms  map[string]struct{}
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, userID int64, name string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Name:   name,
		Events: make(chan *Event, 16),
		Rooms:  make(map[string]struct{}),
	}
}
