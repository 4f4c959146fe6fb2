package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/casegrid/internal/cache"
)

// References serves the cached reference lists.
type References struct {
	estados  *cache.List[[]Estado]
	usuarios *cache.List[[]Usuario]
	roles    *cache.List[[]Rol]
}

// NewReferences caches each list of src for ttl.
func NewReferences(src ReferenceSource, ttl time.Duration, opts ...cache.Option) *References {
	return &References{
		estados:  cache.NewList(ListEstados, ttl, src.ListEstados, opts...),
		usuarios: cache.NewList(ListUsuarios, ttl, src.ListUsuarios, opts...),
		roles:    cache.NewList(ListRoles, ttl, src.ListRoles, opts...),
	}
}

func (r *References) Estados(ctx context.Context) ([]Estado, error) { return r.estados.Get(ctx) }

func (r *References) Usuarios(ctx context.Context) ([]Usuario, error) { return r.usuarios.Get(ctx) }

func (r *References) Roles(ctx context.Context) ([]Rol, error) { return r.roles.Get(ctx) }

// Invalidate drops every cached list.
func (r *References) Invalidate(ctx context.Context) error {
	return cache.InvalidateAll(ctx, r.estados, r.usuarios, r.roles)
}

// OptionsFor returns the option values of a reference list: estado names,
// or the correos of active usuarios.
func (r *References) OptionsFor(ctx context.Context, list string) ([]string, error) {
	switch list {
	case ListEstados:
		estados, err := r.Estados(ctx)
		if err != nil {
			return nil, err
		}
		opts := make([]string, len(estados))
		for i, e := range estados {
			opts[i] = e.Nombre
		}
		return opts, nil

	case ListUsuarios:
		usuarios, err := r.Usuarios(ctx)
		if err != nil {
			return nil, err
		}
		var opts []string
		for _, u := range usuarios {
			if u.Activo {
				opts = append(opts, u.Correo)
			}
		}
		return opts, nil
	}
	return nil, fmt.Errorf("unknown reference list %q", list)
}
