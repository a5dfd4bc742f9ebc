// internal/types/interfaces.go
package types

// SessionRegistry is the single source of truth for chat sessions. Views hold
// session ids and go through the registry for every read and write.
type SessionRegistry interface {
	CreateSession(agent string) SessionID
	Get(id SessionID) (*Session, bool)
	UpdateMessages(id SessionID, msgs []Message) bool
	UpdateAgent(id SessionID, agent string) bool
	RenameSession(id SessionID, name string) bool
	AutoRename(id SessionID, text string) bool
	ListSessions() []*Session
	ListSessionsByAgent(agent string) []*Session
	DeleteSession(id SessionID) bool
	Subscribe(listener func()) (unsubscribe func())
}
