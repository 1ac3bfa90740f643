package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ==================== 错误定义 ====================

type RepoError string

func (e RepoError) Error() string { return string(e) }

const (
	// ErrUpdateInFlight 刊登已有未结束的更新
	ErrUpdateInFlight RepoError = "listing has an unterminated update"
	// ErrInvariantViolation 写入违反数据约束
	ErrInvariantViolation RepoError = "catalog invariant violation"
	// ErrNotFound 记录不存在
	ErrNotFound RepoError = "record not found"
)

// translate 把 gorm 的未找到错误统一成 ErrNotFound
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
