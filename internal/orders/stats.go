package orders

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk/internal/policy"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

const (
	statsDateLayout = "2006-01-02"
	unknownNickname = "unknown"
)

// DailyReport is the set of orders created on one UTC day plus their aggregates.
type DailyReport struct {
	Orders []OrderDTO `json:"orders"`
	Stats  DailyStats `json:"stats"`
}

// DailyStats aggregates one day of orders.
type DailyStats struct {
	TotalOrders         int                   `json:"total_orders"`
	CDKCount            int                   `json:"cdk_count"`
	GiftCount           int                   `json:"gift_count"`
	PendingCount        int                   `json:"pending_count"`
	TimingCount         int                   `json:"timing_count"`
	ReadyToSendCount    int                   `json:"ready_to_send_count"`
	CompletedCount      int                   `json:"completed_count"`
	TotalCost           decimal.Decimal       `json:"total_cost"`
	TypeDistribution    TypeDistribution      `json:"type_distribution"`
	CSPerformance       []AgentPerformance    `json:"cs_performance"`
	SupplierPerformance []SupplierPerformance `json:"supplier_performance"`
}

// TypeDistribution is the percentage share of each order type.
type TypeDistribution struct {
	CDK  float64 `json:"cdk"`
	Gift float64 `json:"gift"`
}

type AgentPerformance struct {
	UserID   uuid.UUID `json:"user_id"`
	Nickname string    `json:"nickname"`
	Count    int       `json:"count"`
}

type SupplierPerformance struct {
	UserID    uuid.UUID       `json:"user_id"`
	Nickname  string          `json:"nickname"`
	Count     int             `json:"count"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

func (s *service) DailyStats(ctx context.Context, actor auth.Principal, date string) (*DailyReport, error) {
	if err := policy.Authorize(actor, policy.ActionViewDailyStats, policy.Target{}).Err(); err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dateString is required")
	}
	day, err := time.ParseInLocation(statsDateLayout, date, time.UTC)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dateString must be YYYY-MM-DD")
	}

	rows, err := s.repo.ListCreatedBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load daily orders")
	}

	report := &DailyReport{Orders: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		report.Orders = append(report.Orders, FromRow(row))
	}
	report.Stats = aggregate(rows)
	return report, nil
}

func aggregate(rows []OrderRow) DailyStats {
	stats := DailyStats{
		TotalOrders:         len(rows),
		TotalCost:           decimal.Zero,
		CSPerformance:       []AgentPerformance{},
		SupplierPerformance: []SupplierPerformance{},
	}
	agents := map[uuid.UUID]*AgentPerformance{}
	suppliers := map[uuid.UUID]*SupplierPerformance{}
	var agentOrder, supplierOrder []uuid.UUID

	for _, row := range rows {
		switch row.OrderType {
		case enums.OrderTypeCDK:
			stats.CDKCount++
		case enums.OrderTypeGift:
			stats.GiftCount++
		}
		switch row.Status {
		case enums.OrderStatusPending:
			stats.PendingCount++
		case enums.OrderStatusTiming:
			stats.TimingCount++
		case enums.OrderStatusReadyToSend:
			stats.ReadyToSendCount++
		case enums.OrderStatusCompleted:
			stats.CompletedCount++
		}
		if row.CostPrice.Valid {
			stats.TotalCost = stats.TotalCost.Add(row.CostPrice.Decimal)
		}

		if row.CSID != uuid.Nil {
			agent, ok := agents[row.CSID]
			if !ok {
				agent = &AgentPerformance{UserID: row.CSID, Nickname: nicknameOrUnknown(row.CSNickname)}
				agents[row.CSID] = agent
				agentOrder = append(agentOrder, row.CSID)
			}
			agent.Count++
		}
		if !row.IsUnassigned() {
			id := *row.SupplierID
			supplier, ok := suppliers[id]
			if !ok {
				supplier = &SupplierPerformance{UserID: id, Nickname: nicknameOrUnknown(row.SupplierNickname), TotalCost: decimal.Zero}
				suppliers[id] = supplier
				supplierOrder = append(supplierOrder, id)
			}
			supplier.Count++
			if row.CostPrice.Valid {
				supplier.TotalCost = supplier.TotalCost.Add(row.CostPrice.Decimal)
			}
		}
	}

	if stats.TotalOrders > 0 {
		total := float64(stats.TotalOrders)
		stats.TypeDistribution = TypeDistribution{
			CDK:  float64(stats.CDKCount) / total * 100,
			Gift: float64(stats.GiftCount) / total * 100,
		}
	}

	for _, id := range agentOrder {
		stats.CSPerformance = append(stats.CSPerformance, *agents[id])
	}
	for _, id := range supplierOrder {
		stats.SupplierPerformance = append(stats.SupplierPerformance, *suppliers[id])
	}
	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(stats.CSPerformance, func(i, j int) bool {
		return stats.CSPerformance[i].Count > stats.CSPerformance[j].Count
	})
	sort.SliceStable(stats.SupplierPerformance, func(i, j int) bool {
		return stats.SupplierPerformance[i].Count > stats.SupplierPerformance[j].Count
	})
	return stats
}

func nicknameOrUnknown(nickname *string) string {
	if nickname == nil || strings.TrimSpace(*nickname) == "" {
		return unknownNickname
	}
	return *nickname
}
