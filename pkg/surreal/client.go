package surreal

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

type Config struct {
	Host      string
	User      string
	Pass      string
	Namespace string
	Database  string
}

type Client struct {
	db *surrealdb.DB
}

// identifierRegex ensures that table names and fields only contain alphanumeric characters and underscores
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateIdentifier(s string) error {
	if !identifierRegex.MatchString(s) {
		return fmt.Errorf("invalid identifier: %s", s)
	}
	return nil
}

// NormalizeHost turns a bare host into a websocket RPC endpoint.
func NormalizeHost(host string) string {
	if host == "" {
		return host
	}
	for _, scheme := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(host, scheme) {
			return host
		}
	}
	return "wss://" + host + "/rpc"
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := surrealdb.New(NormalizeHost(cfg.Host))
	if err != nil {
		return nil, fmt.Errorf("failed to create surrealdb client: %w", err)
	}

	if _, err = db.SignIn(ctx, map[string]interface{}{
		"user": cfg.User,
		"pass": cfg.Pass,
	}); err != nil {
		return nil, fmt.Errorf("failed to signin to surrealdb: %w", err)
	}

	if err = db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to use surrealdb namespace/database: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() {
	c.db.Close(context.Background())
}

// Query runs a statement and returns the result of the last statement in it.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error) {
	if vars == nil {
		vars = map[string]interface{}{}
	}
	result, err := surrealdb.Query[interface{}](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}

	// Unwrap the result: *RawQueryResponse -> Result field
	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Struct {
		resField := rv.FieldByName("Result")
		if resField.IsValid() {
			return resField.Interface(), nil
		}
	} else if rv.Kind() == reflect.Slice {
		if rv.Len() > 0 {
			lastElem := rv.Index(rv.Len() - 1)
			if lastElem.Kind() == reflect.Struct {
				resField := lastElem.FieldByName("Result")
				if resField.IsValid() {
					return resField.Interface(), nil
				}
			}
		}
	}

	return result, nil
}

// QueryRows runs a statement whose last result is a list of records.
func (c *Client) QueryRows(ctx context.Context, sql string, vars map[string]interface{}) ([]map[string]interface{}, error) {
	result, err := c.Query(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	return toRows(result)
}

func (c *Client) Create(ctx context.Context, table string, data interface{}) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	_, err := surrealdb.Create[interface{}](ctx, c.db, table, data)
	return err
}

// SelectWhere returns records of table matching every filter field by equality.
func (c *Client) SelectWhere(ctx context.Context, table string, filter map[string]interface{}, orderBy string, limit int) ([]map[string]interface{}, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	whereClause, err := buildWhereClause(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", table, whereClause)
	if orderBy != "" {
		field, dir, _ := strings.Cut(orderBy, " ")
		if err := validateIdentifier(field); err != nil {
			return nil, err
		}
		dir = strings.ToUpper(strings.TrimSpace(dir))
		if dir != "DESC" {
			dir = "ASC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", field, dir)
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	query += ";"

	vars := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		vars[k] = v
	}

	return c.QueryRows(ctx, query, vars)
}

func buildWhereClause(filter map[string]interface{}) (string, error) {
	if len(filter) == 0 {
		return "true", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if err := validateIdentifier(k); err != nil {
			return "", err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = $%s", k, k)
	}
	return strings.Join(parts, " AND "), nil
}

func toRows(result interface{}) ([]map[string]interface{}, error) {
	if result == nil {
		return nil, nil
	}
	items, ok := result.([]interface{})
	if !ok {
		if row, ok := toStringMap(result); ok {
			return []map[string]interface{}{row}, nil
		}
		return nil, fmt.Errorf("unexpected result type: %T", result)
	}

	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if row, ok := toStringMap(item); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// toStringMap accepts both map shapes the CBOR decoder may produce.
func toStringMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
