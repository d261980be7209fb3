package models

// SystemConfig - единственный долгоживущий конфигурационный документ (ключ GLOBAL).
// FreeJerseyNumbers пополняется при удалении участников; каждый номер в списке
// не превышает LastAssignedJerseyNumber и никем не занят.
type SystemConfig struct {
	Key                      string  `json:"key" db:"key"`
	LastAssignedJerseyNumber int     `json:"last_assigned_jersey_number" db:"last_assigned_jersey_number"`
	FreeJerseyNumbers        []int64 `json:"free_jersey_numbers" db:"free_jersey_numbers"`
	CertificatesLocked       bool    `json:"certificates_locked" db:"certificates_locked"`
}

const SystemConfigKey = "GLOBAL"
