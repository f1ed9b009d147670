package permissions

// Level is the strength of a grant.
type Level string

const (
	LevelRead     Level = "read"
	LevelInteract Level = "interact"
	LevelWrite    Level = "write"
	LevelExecute  Level = "execute"
	LevelSend     Level = "send"
)

// Levels lists the accepted levels.
func Levels() []Level {
	return []Level{LevelRead, LevelInteract, LevelWrite, LevelExecute, LevelSend}
}

// Valid reports whether l is one of Levels.
func (l Level) Valid() bool {
	switch l {
	case LevelRead, LevelInteract, LevelWrite, LevelExecute, LevelSend:
		return true
	}
	return false
}
