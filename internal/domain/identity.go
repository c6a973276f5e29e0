package domain

// Role — роль инициатора запроса, полученная от внешнего identity-провайдера.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Identity — факт аутентификации, который ядро принимает как доверенный вход.
// Проверка пароля/сессии/OAuth живёт во внешнем слое.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  Role
}

// Authenticated сообщает, представлен ли в запросе аутентифицированный пользователь.
func (i Identity) Authenticated() bool {
	return i.ID != ""
}

// Is проверяет роль инициатора.
func (i Identity) Is(role Role) bool {
	return i.Role == role
}
