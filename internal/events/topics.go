package events

// Domain event topics persisted by Bus.
const (
	TopicOrderPaid          = "order.paid"
	TopicOrderStatusChanged = "order.status_changed"
)

// List change topics published through the Hub.
const (
	TopicGuestCartUpdated     = "guestCartUpdated"
	TopicGuestWishlistUpdated = "guestWishlistUpdated"
	TopicCartUpdated          = "cartUpdated"
	TopicWishlistUpdated      = "wishlistUpdated"
)

// DefaultTopics returns the domain topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderPaid,
		TopicOrderStatusChanged,
	}
}

// ListTopic maps a list kind and ownership to its change topic.
func ListTopic(kind string, guest bool) string {
	switch {
	case kind == "wishlist" && guest:
		return TopicGuestWishlistUpdated
	case kind == "wishlist":
		return TopicWishlistUpdated
	case guest:
		return TopicGuestCartUpdated
	default:
		return TopicCartUpdated
	}
}
