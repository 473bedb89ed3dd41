// Package domain はドメインモデルを提供する。
package domain

import "time"

// MigrationDefinition はマイグレーションファイルから読み込んだ定義を表す。
// 読み込み後は変更しない。
type MigrationDefinition struct {
	ID         string // ゼロ埋めの連番（例: "0001"）。ソートキー。
	Name       string // ファイル名から抽出した名前
	Filename   string // 元のファイル名（診断用）
	UpScript   string // 適用用SQL。必須。
	DownScript string // ロールバック用SQL。空の場合はロールバック不可。
	Checksum   string // up/downスクリプトの内容から算出したハッシュ
}

// Reversible はロールバック可能かどうかを返す。
func (d *MigrationDefinition) Reversible() bool {
	return d.DownScript != ""
}

// MigrationRecord は履歴テーブルの1行を表す。
// 同一IDについては最新の実行試行の結果のみを保持する。
type MigrationRecord struct {
	ID           string
	Name         string
	ExecutedAt   time.Time
	Checksum     string // 実行時点のチェックサム（後からの改変検出用）
	Success      bool
	ErrorMessage string // Success=falseの場合のみ設定される
}

// MigrationStatus は定義と履歴を突き合わせた現在の状態を表す。
// 1つのマイグレーションはapplied/failed/pendingのいずれか1つにのみ現れる。
type MigrationStatus struct {
	Total   int
	Applied []*MigrationRecord
	Failed  []*MigrationRecord
	Pending []*MigrationDefinition
}

// ValidationResult は整合性検証の結果を表す。
type ValidationResult struct {
	Valid  bool
	Issues []string
}

// RunResult は一括適用の結果を表す。
// 最初の失敗で中断するため、Failedには高々1件のIDが入る。
type RunResult struct {
	RunID    string
	Executed []string
	Failed   []string
}

// HealthReport はステータスと検証結果をまとめたレポート。
type HealthReport struct {
	Healthy bool
	Issues  []string
	Status  *MigrationStatus
}
