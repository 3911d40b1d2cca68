// Package advisor produces a short natural-language business summary from a
// read-only snapshot of the catalog, the ledger and the rate set.
//
// An Advisor never touches application state. Its text is display-only and a
// failure degrades to FallbackMessage.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xraph/tienda/catalog"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/transaction"
)

// Display texts.
const (
	IdleMessage     = "Analizando datos..."
	EmptyMessage    = "No hay análisis disponibles en este momento."
	FallbackMessage = "No se pudieron generar los análisis. Verifica tu conexión."
)

// RecentTransactions is how many of the newest transactions go into a prompt.
const RecentTransactions = 10

// Snapshot is the advisor's input.
type Snapshot struct {
	Products     []catalog.Product
	Transactions []transaction.Transaction
	Rates        fx.Rates
}

// SnapshotOf copies the parts of s an advisor may read.
func SnapshotOf(s state.AppState) Snapshot {
	c := s.Clone()
	return Snapshot{Products: c.Products, Transactions: c.Transactions, Rates: c.Rates}
}

// Advisor turns a snapshot into a summary.
type Advisor interface {
	Insights(ctx context.Context, s Snapshot) (string, error)
}

// Func adapts a plain function to the Advisor interface.
type Func func(ctx context.Context, s Snapshot) (string, error)

// Insights implements Advisor.
func (f Func) Insights(ctx context.Context, s Snapshot) (string, error) {
	return f(ctx, s)
}

// Prompt renders the analyst instructions for s. Transactions are newest
// first, so the head of the list is the recent activity.
func Prompt(s Snapshot) (string, error) {
	recent := s.Transactions
	if len(recent) > RecentTransactions {
		recent = recent[:RecentTransactions]
	}
	data, err := json.Marshal(recent)
	if err != nil {
		return "", fmt.Errorf("advisor: encode transactions: %w", err)
	}

	low := catalog.LowStock(s.Products)
	names := make([]string, 0, len(low))
	for _, p := range low {
		names = append(names, fmt.Sprintf("%s (%d)", p.Name, p.Stock))
	}

	var b strings.Builder
	b.WriteString("Como analista de negocios para una tienda minorista en Venezuela, analiza estos datos:\n")
	fmt.Fprintf(&b, "Tasa de Cambio (VES/USD): %s\n", s.Rates.LocalPerUSD.StringFixed(2))
	fmt.Fprintf(&b, "Cantidad de Productos: %d\n", len(s.Products))
	if len(names) > 0 {
		fmt.Fprintf(&b, "Productos con stock bajo: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Transacciones Recientes (últimas %d): %s\n\n", RecentTransactions, data)
	b.WriteString("Proporciona un breve análisis diario centrado en:\n")
	b.WriteString("1. Tendencias de ventas.\n")
	b.WriteString("2. Alertas de inventario (stock bajo).\n")
	b.WriteString("3. Consejos sobre el riesgo cambiario dada la tasa actual del BCV.\n\n")
	b.WriteString("Responde en un párrafo corto y exclusivamente en ESPAÑOL.")
	return b.String(), nil
}
