package services

import "github.com/Olzhas-K/sportsmeet-system/models"

// Решётка ролей для мутаций чужих записей: manager > admin > student.
// Проверка чистая и выполняется до любого обращения к хранилищу.

func roleRank(role models.ParticipantRole) int {
	switch role {
	case models.RoleManager:
		return 2
	case models.RoleAdmin:
		return 1
	default:
		return 0
	}
}

// CanMutate сообщает, может ли actor изменять запись target.
// Чужую запись можно менять только при строго большем ранге, поэтому
// админ никогда не трогает менеджера. Свою запись меняет только персонал.
func CanMutate(actor, target *models.Participant) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return actor.Role == models.RoleAdmin || actor.Role == models.RoleManager
	}
	return roleRank(actor.Role) > roleRank(target.Role)
}

// AuthorizeMutation - обёртка над CanMutate с ошибкой сервисного слоя.
func AuthorizeMutation(actor, target *models.Participant) error {
	if !CanMutate(actor, target) {
		return ErrForbiddenOperation
	}
	return nil
}

// IsStaff сообщает, относится ли роль к персоналу соревнований.
func IsStaff(role models.ParticipantRole) bool {
	return role == models.RoleAdmin || role == models.RoleManager
}
