package model

import (
	"time"
)

// BaseModel 通用主键与时间戳
// 同步状态表需要精确的唯一性判断，不使用软删除
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
