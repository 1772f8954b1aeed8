// Package loader 把离线训练产出的表格文件装载为推荐列表。
//
// 支持的格式：
//   - parquet / csv：通过内嵌的 DuckDB 读取，分组、排序在 SQL 中完成
//   - json / yaml：行数组，例如
//
//	- {user_id: u1, item_id: i9, rank: 1}
//	- {user_id: u1, item_id: i3, rank: 2}
//
// 表是长格式：每行 (key, item, order)。按 key 分组、按 order 排序，
// 每个 key 得到一个按首次出现去重的 RankedList。
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pkg/conv"
)

// 列名只允许标识符，拼接到 SQL 前校验
var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Loader 读取表格文件。DuckDB 连接是进程内的内存库，用完需 Close。
type Loader struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New 打开内存 DuckDB。
func New(logger zerolog.Logger) (*Loader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Loader{db: db, logger: logger.With().Str("component", "loader").Logger()}, nil
}

func (l *Loader) Close() error {
	return l.db.Close()
}

type row struct {
	key   string
	item  string
	order float64
}

// LoadLists 读取带 key 列的表（个性化、相似物品、历史），返回 key -> RankedList。
func (l *Loader) LoadLists(ctx context.Context, src config.TableSource) (map[string]core.RankedList, error) {
	if src.KeyColumn == "" {
		return nil, fmt.Errorf("load %s: key_column is required", src.Path)
	}
	rows, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	lists := group(rows, src.Limit)
	l.logger.Info().Str("path", src.Path).Int("rows", len(rows)).Int("keys", len(lists)).Msg("table loaded")
	return lists, nil
}

// LoadList 读取没有 key 列的表（热门），返回单个 RankedList。
func (l *Loader) LoadList(ctx context.Context, src config.TableSource) (core.RankedList, error) {
	src.KeyColumn = ""
	rows, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	list := group(rows, src.Limit)[""]
	if list == nil {
		list = core.RankedList{}
	}
	l.logger.Info().Str("path", src.Path).Int("rows", len(rows)).Int("items", len(list)).Msg("list loaded")
	return list, nil
}

func (l *Loader) read(ctx context.Context, src config.TableSource) ([]row, error) {
	if err := checkColumns(src); err != nil {
		return nil, err
	}
	switch format := Format(src); format {
	case "parquet", "csv":
		return l.readDuckDB(ctx, src, format)
	case "json", "yaml":
		return readRows(src)
	default:
		return nil, fmt.Errorf("load %s: unsupported format %q", src.Path, format)
	}
}

// Format 返回表的格式：显式配置优先，否则按扩展名推断。
func Format(src config.TableSource) string {
	if src.Format != "" {
		return src.Format
	}
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".parquet":
		return "parquet"
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

func checkColumns(src config.TableSource) error {
	for _, c := range []string{src.KeyColumn, src.ItemColumn, src.OrderColumn} {
		if c != "" && !columnPattern.MatchString(c) {
			return fmt.Errorf("load %s: invalid column name %q", src.Path, c)
		}
	}
	if src.ItemColumn == "" {
		return fmt.Errorf("load %s: item_column is required", src.Path)
	}
	return nil
}

// buildQuery 构造读取语句，结果按 key、order 排好序。
func buildQuery(src config.TableSource, format string) string {
	keyExpr := "''"
	if src.KeyColumn != "" {
		keyExpr = quoteIdent(src.KeyColumn)
	}
	orderExpr := "0"
	if src.OrderColumn != "" {
		orderExpr = "CAST(" + quoteIdent(src.OrderColumn) + " AS DOUBLE)"
	}

	reader := "read_parquet"
	if format == "csv" {
		reader = "read_csv_auto"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s AS k, %s AS i, %s AS o FROM %s(%s)",
		keyExpr, quoteIdent(src.ItemColumn), orderExpr, reader, quoteLiteral(src.Path))
	if src.OrderColumn != "" {
		dir := "ASC"
		if src.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY k, o %s", dir)
	}
	return b.String()
}

func (l *Loader) readDuckDB(ctx context.Context, src config.TableSource, format string) ([]row, error) {
	if _, err := os.Stat(src.Path); err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Path, err)
	}
	rs, err := l.db.QueryContext(ctx, buildQuery(src, format))
	if err != nil {
		return nil, fmt.Errorf("load %s: query: %w", src.Path, err)
	}
	defer rs.Close()

	var (
		out     []row
		skipped int
	)
	for rs.Next() {
		var k, i, o any
		if err := rs.Scan(&k, &i, &o); err != nil {
			return nil, fmt.Errorf("load %s: scan: %w", src.Path, err)
		}
		r, ok := toRow(k, i, o, src.KeyColumn == "")
		if !ok {
			skipped++
			continue
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Path, err)
	}
	if skipped > 0 {
		l.logger.Warn().Str("path", src.Path).Int("skipped", skipped).Msg("rows with empty key or item skipped")
	}
	return out, nil
}

// readRows 读取 JSON/YAML 行数组，在内存中排序。
func readRows(src config.TableSource) ([]row, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Path, err)
	}
	var records []map[string]any
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("load %s: decode: %w", src.Path, err)
	}

	out := make([]row, 0, len(records))
	for _, rec := range records {
		var k, o any = "", float64(0)
		if src.KeyColumn != "" {
			k = rec[src.KeyColumn]
		}
		if src.OrderColumn != "" {
			o = rec[src.OrderColumn]
		}
		if r, ok := toRow(k, rec[src.ItemColumn], o, src.KeyColumn == ""); ok {
			out = append(out, r)
		}
	}

	if src.OrderColumn != "" {
		sort.SliceStable(out, func(a, b int) bool {
			if out[a].key != out[b].key {
				return out[a].key < out[b].key
			}
			if src.Descending {
				return out[a].order > out[b].order
			}
			return out[a].order < out[b].order
		})
	}
	return out, nil
}

func toRow(k, i, o any, keyless bool) (row, bool) {
	var r row
	if keyless {
		r.key = ""
	} else {
		key, ok := conv.ToID(k)
		if !ok {
			return r, false
		}
		r.key = key
	}
	item, ok := conv.ToID(i)
	if !ok {
		return r, false
	}
	r.item = item
	r.order, _ = conv.ToFloat64(o)
	return r, true
}

// group 按 key 分组，保持行顺序，按首次出现去重，每组最多 limit 个（0 表示不限）。
func group(rows []row, limit int) map[string]core.RankedList {
	out := make(map[string]core.RankedList)
	seen := make(map[string]map[string]struct{})
	for _, r := range rows {
		if limit > 0 && len(out[r.key]) >= limit {
			continue
		}
		s, ok := seen[r.key]
		if !ok {
			s = make(map[string]struct{})
			seen[r.key] = s
		}
		if _, dup := s[r.item]; dup {
			continue
		}
		s[r.item] = struct{}{}
		out[r.key] = append(out[r.key], r.item)
	}
	return out
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
