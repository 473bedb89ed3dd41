package domain

import "errors"

var (
	// ErrMigrationFailed はマイグレーションのSQL実行に失敗した場合のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルの内容が不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")

	// ErrDuplicateMigrationID は同一IDのマイグレーションファイルが複数存在する場合のエラー。
	ErrDuplicateMigrationID = errors.New("duplicate migration id")

	// ErrRollbackNotSupported はdownスクリプトを持たないマイグレーションをロールバックしようとした場合のエラー。
	ErrRollbackNotSupported = errors.New("rollback not supported")

	// ErrMigrationNotFound は指定されたIDのマイグレーションファイルが存在しない場合のエラー。
	ErrMigrationNotFound = errors.New("migration not found")
)
