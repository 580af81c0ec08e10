package api

import (
	"github.com/h3tiles/server/internal/config"
	"github.com/h3tiles/server/internal/service"
)

// TableInfo describes a servable table for the API response.
type TableInfo struct {
	Name   string             `json:"name"`
	Schema config.TableSchema `json:"schema"`
}

// TableRegistry holds tile services for all configured tables. It is the
// allow-list consulted before any table name reaches a query.
type TableRegistry struct {
	services map[string]*service.TileService
	order    []string
}

// NewTableRegistry creates an empty table registry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{
		services: make(map[string]*service.TileService),
	}
}

// Register adds the tile service for its table. Registering the same table
// twice replaces the service but keeps its first position.
func (r *TableRegistry) Register(svc *service.TileService) {
	name := svc.Schema().Table
	if _, ok := r.services[name]; !ok {
		r.order = append(r.order, name)
	}
	r.services[name] = svc
}

// Get returns the tile service for a table, or nil if not found.
func (r *TableRegistry) Get(table string) *service.TileService {
	return r.services[table]
}

// Names returns all table names in registration order.
func (r *TableRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Tables returns table info for all registered tables.
func (r *TableRegistry) Tables() []TableInfo {
	infos := make([]TableInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, TableInfo{
			Name:   name,
			Schema: r.services[name].Schema(),
		})
	}
	return infos
}
