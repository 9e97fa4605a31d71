package models

// Роли пользователей платформы
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// GrievanceCategory константы категорий жалоб (информационные, на переходы не влияют)
const (
	GrievanceCategoryConduct   = "conduct"
	GrievanceCategoryResources = "resources"
	GrievanceCategoryAgreement = "agreement"
	GrievanceCategoryOther     = "other"
)

// GrievancePriority константы приоритетов жалоб
const (
	GrievancePriorityLow    = "low"
	GrievancePriorityMedium = "medium"
	GrievancePriorityHigh   = "high"
	GrievancePriorityUrgent = "urgent"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleMember: {},
	RoleAdmin:  {},
}

// ValidGrievanceCategories список валидных категорий
var ValidGrievanceCategories = map[string]struct{}{
	GrievanceCategoryConduct:   {},
	GrievanceCategoryResources: {},
	GrievanceCategoryAgreement: {},
	GrievanceCategoryOther:     {},
}

// ValidGrievancePriorities список валидных приоритетов
var ValidGrievancePriorities = map[string]struct{}{
	GrievancePriorityLow:    {},
	GrievancePriorityMedium: {},
	GrievancePriorityHigh:   {},
	GrievancePriorityUrgent: {},
}
