package role

type Role int

const (
	User  Role = iota // 0
	Admin             // 1
)

func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	default:
		return "user"
	}
}
