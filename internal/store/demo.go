package store

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/casegrid/internal/core"
	"github.com/JonMunkholm/casegrid/internal/grid"
)

var demoIPS = []struct{ nit, nombre string }{
	{"800123456", "Clínica del Norte"},
	{"900654321", "Hospital San Rafael"},
	{"890111222", "IPS Salud Total"},
	{"811222333", "Centro Médico La Esperanza"},
}

var demoEstados = []string{"ASIGNADA", "LIQUIDADO", "INCONSISTENCIA", "DEVOLUCION", "NO COMPLETADO"}

// NewDemo returns a Memory store seeded with two teams and n casos assigned
// over the days before now. The data is deterministic for a given n and now.
func NewDemo(now time.Time, n int) *Memory {
	m := NewMemory()

	usuarios := []core.Usuario{
		{Correo: "admin@casegrid.local", Nombre: "Administrador", RoleID: 1, Activo: true},
		{Correo: "ana@casegrid.local", Nombre: "Ana Gómez", RoleID: 2, Activo: true},
		{Correo: "luis@casegrid.local", Nombre: "Luis Pérez", RoleID: 2, Activo: true},
		{Correo: "carla@casegrid.local", Nombre: "Carla Ruiz", RoleID: 3, IDLider: "ana@casegrid.local", Activo: true},
		{Correo: "diego@casegrid.local", Nombre: "Diego Mora", RoleID: 3, IDLider: "ana@casegrid.local", Activo: true},
		{Correo: "elena@casegrid.local", Nombre: "Elena Vargas", RoleID: 3, IDLider: "luis@casegrid.local", Activo: true},
		{Correo: "fabio@casegrid.local", Nombre: "Fabio Rojas", RoleID: 3, IDLider: "luis@casegrid.local", Activo: false},
	}
	for _, u := range usuarios {
		m.AddUsuario(u)
	}
	operadores := []core.Usuario{usuarios[3], usuarios[4], usuarios[5], usuarios[6]}

	day := now.Truncate(24 * time.Hour)
	for i := 0; i < n; i++ {
		op := operadores[i%len(operadores)]
		ips := demoIPS[i%len(demoIPS)]
		rec := grid.Record{
			"radicado":                fmt.Sprintf("RAD-%05d", i+1),
			"ips_nit":                 ips.nit,
			"ips_nombre":              ips.nombre,
			"factura":                 fmt.Sprintf("FE-%d", 10000+i*7),
			"valor_factura":           float64(150000 + (i*37%50)*12500),
			"ruta_imagen":             fmt.Sprintf("/imagenes/RAD-%05d.pdf", i+1),
			"caso":                    nil,
			"fecha_asignacion":        day.AddDate(0, 0, -(i % 45)).Format(time.DateOnly),
			"total_servicios":         int64(1 + i%9),
			"lider":                   op.IDLider,
			"usuario_asignacion":      op.Correo,
			"total_servicios_usuario": int64(i % 5),
			"estado":                  demoEstados[i%len(demoEstados)],
			"prioridad":               int64(1 + i%3),
		}
		if i%6 == 0 {
			rec["caso"] = "Pendiente soporte de facturación"
		}
		// radicados are unique by construction
		_ = m.AddCaso(rec)
	}
	return m
}
