package ports

// Topics publiés sur le bus.
const (
	TopicTitleCreated  = "title.created"
	TopicTitleUpdated  = "title.updated"
	TopicTitleDeleted  = "title.deleted"
	TopicTitleProgress = "title.progress"

	// TopicSessionChanged notifie connexion, déconnexion et changement de mot de passe.
	TopicSessionChanged = "session.changed"
)

type EventBus interface {
	Publish(evt Event)
	// Subscribe ne reçoit que les événements acceptés par match (tous si nil).
	Subscribe(match func(Event) bool) (ch <-chan Event, cancel func())
}

type Event struct {
	Topic string
	// UserID est le propriétaire concerné ; le flux SSE filtre dessus.
	UserID  string
	Payload []byte
}
