// Package usecase はマイグレーションエンジンのビジネスロジックを提供する。
//
// エンジンはプロセス単位の単一書き込みを前提とする。複数プロセスが同一
// データベースへ同時にマイグレーションを適用する構成はサポートしない。
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"migration-service/internal/domain"
)

// マイグレーションファイル名のフォーマット: {id}_{name}.sql (例: 0001_create_users.sql)
var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// ファイル本文をup/downセクションに分割するマーカー行。
const (
	upMarker   = "-- UP MIGRATION"
	downMarker = "-- DOWN MIGRATION"
)

// MigrationLoader はマイグレーションファイルの読み込みを提供する。
type MigrationLoader struct {
	dir string
}

// NewMigrationLoader は新しいMigrationLoaderを生成する。
func NewMigrationLoader(dir string) *MigrationLoader {
	return &MigrationLoader{dir: dir}
}

// LoadMigrations はディレクトリを読み込み、ID昇順の定義一覧を返す。
// 定義はキャッシュせず毎回ファイルシステムから読み直す。
// ディレクトリやファイルの読み込み失敗は全体のエラーとする。
func (l *MigrationLoader) LoadMigrations(ctx context.Context) ([]*domain.MigrationDefinition, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var definitions []*domain.MigrationDefinition
	seen := make(map[string]string) // id -> filename
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			// マイグレーション以外のファイルは同居を許容し、警告のみでスキップする
			slog.WarnContext(ctx, "skipping non-migration file",
				"operation", "load_migrations",
				"filename", entry.Name(),
			)
			continue
		}

		id, name := match[1], match[2]
		if existing, exists := seen[id]; exists {
			return nil, fmt.Errorf("%w: id %s found in both %s and %s",
				domain.ErrDuplicateMigrationID, id, existing, entry.Name())
		}
		seen[id] = entry.Name()

		content, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		up, down := splitSections(string(content))
		if up == "" {
			return nil, fmt.Errorf("%w: %s has no up script", domain.ErrInvalidMigrationFile, entry.Name())
		}

		definitions = append(definitions, &domain.MigrationDefinition{
			ID:         id,
			Name:       name,
			Filename:   entry.Name(),
			UpScript:   up,
			DownScript: down,
			Checksum:   computeChecksum(up, down),
		})
	}

	// IDの数値としての昇順でソートする（"0002" < "0010"）
	sort.Slice(definitions, func(i, j int) bool {
		return numericID(definitions[i].ID) < numericID(definitions[j].ID)
	})

	return definitions, nil
}

// splitSections はファイル本文をUP/DOWNマーカーで分割する。
// DOWNマーカーがないファイルは全体がupスクリプトとなり、downは空になる。
func splitSections(content string) (up, down string) {
	upPart := content
	if downIdx := strings.Index(content, downMarker); downIdx >= 0 {
		upPart = content[:downIdx]
		down = strings.TrimSpace(content[downIdx+len(downMarker):])
	}
	if upIdx := strings.Index(upPart, upMarker); upIdx >= 0 {
		upPart = upPart[upIdx+len(upMarker):]
	}
	up = strings.TrimSpace(upPart)
	return up, down
}

// computeChecksum はup/downスクリプトの連結からSHA-256ハッシュを算出する。
// どちらかのスクリプトが1バイトでも変わればチェックサムも変わる。
func computeChecksum(up, down string) string {
	hash := sha256.Sum256([]byte(up + "\n" + down))
	return hex.EncodeToString(hash[:])
}

// numericID はIDを数値として解釈する。パターン上\d+のみが渡る。
func numericID(id string) int {
	n, _ := strconv.Atoi(id)
	return n
}
