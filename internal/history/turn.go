package history

// Role is the display-level speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the displayed conversation. Evidence never lives here;
// a user turn keeps only what the user typed.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
