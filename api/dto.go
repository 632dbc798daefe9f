/*
dto.go - Request/response data structures

PURPOSE:
  Wire shapes for the HTTP API, kept separate from domain types so the JSON
  contract can evolve without touching the ledger core. Monetary fields are
  serialized as strings to preserve decimal precision; PriceUSD stays a
  float because it is informational only.

SEE ALSO:
  - handlers.go: produces and consumes these
*/
package api

import (
	"time"

	"github.com/prism/market-ledger/ledger"
	"github.com/prism/market-ledger/reconcile"
	"github.com/prism/market-ledger/stats"
)

// =============================================================================
// REQUESTS
// =============================================================================

// RecordBasePurchaseRequest reports a purchase settled in the base currency.
type RecordBasePurchaseRequest struct {
	ItemID         string  `json:"itemId"`
	BuyerAddress   string  `json:"buyerAddress"`
	SellerAddress  string  `json:"sellerAddress"`
	SettlementHash string  `json:"settlementHash"`
	PriceBase      string  `json:"priceBase"`
	PurchaseKind   string  `json:"purchaseKind"`
	PriceUSD       float64 `json:"priceUsd,omitempty"`
	BlockNumber    uint64  `json:"blockNumber,omitempty"`
	GasUsed        string  `json:"gasUsed,omitempty"`
	GasPrice       string  `json:"gasPrice,omitempty"`
	Network        string  `json:"network,omitempty"`
}

// RecordTokenPurchaseRequest reports a purchase settled in the platform
// token. settlementHash is optional; absent means an off-chain purchase.
type RecordTokenPurchaseRequest struct {
	ItemID         string  `json:"itemId"`
	BuyerAddress   string  `json:"buyerAddress"`
	SellerAddress  string  `json:"sellerAddress"`
	PriceToken     string  `json:"priceToken"`
	SettlementHash string  `json:"settlementHash,omitempty"`
	PriceUSD       float64 `json:"priceUsd,omitempty"`
	Network        string  `json:"network,omitempty"`
	TokenContract  string  `json:"tokenContract,omitempty"`
	TokenSymbol    string  `json:"tokenSymbol,omitempty"`
	TokenDecimals  int     `json:"tokenDecimals,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// PurchaseDTO mirrors a recorded purchase.
type PurchaseDTO struct {
	ID             string  `json:"id"`
	ItemID         string  `json:"itemId"`
	BuyerAddress   string  `json:"buyerAddress"`
	SellerAddress  string  `json:"sellerAddress"`
	SettlementHash string  `json:"settlementHash"`
	PriceBase      string  `json:"priceBase"`
	PriceToken     string  `json:"priceToken"`
	PriceUSD       float64 `json:"priceUsd"`
	Network        string  `json:"network"`
	Rail           string  `json:"rail"`
	Kind           string  `json:"purchaseKind"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"createdAt"`
}

// TransactionDTO mirrors the audit record of a purchase.
type TransactionDTO struct {
	ID             string `json:"id"`
	SettlementHash string `json:"settlementHash"`
	Rail           string `json:"rail"`
	FeeAmount      string `json:"feeAmount"`
	FeePercentage  string `json:"feePercentage"`
	SellerAmount   string `json:"sellerAmount"`
	ChainID        int64  `json:"chainId"`
	BlockNumber    uint64 `json:"blockNumber,omitempty"`
	GasUsed        string `json:"gasUsed,omitempty"`
	GasPrice       string `json:"gasPrice,omitempty"`
	TokenContract  string `json:"tokenContract,omitempty"`
	TokenSymbol    string `json:"tokenSymbol,omitempty"`
	TokenDecimals  int    `json:"tokenDecimals,omitempty"`
	ConfirmedAt    string `json:"confirmedAt,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// ReceiptDTO is the pair returned by the record endpoints. Duplicate is true
// when the settlement hash was already recorded and the echoed pair is the
// original, not a new write.
type ReceiptDTO struct {
	Purchase    PurchaseDTO    `json:"purchase"`
	Transaction TransactionDTO `json:"transaction"`
	Duplicate   bool           `json:"duplicate,omitempty"`
}

// MarketStatsDTO is the market-wide snapshot.
type MarketStatsDTO struct {
	ActiveItems       int                `json:"activeItems"`
	TotalPurchases    int                `json:"totalPurchases"`
	UniqueBuyers      int                `json:"uniqueBuyers"`
	UniqueSellers     int                `json:"uniqueSellers"`
	TotalRevenueBase  string             `json:"totalRevenueBase"`
	TotalRevenueToken string             `json:"totalRevenueToken"`
	TopCategories     []CategoryCountDTO `json:"topCategories"`
	RecentPurchases   int                `json:"recentPurchases"`
	RecentNewItems    int                `json:"recentNewItems"`
	WindowDays        int                `json:"windowDays"`
}

type CategoryCountDTO struct {
	Category  string `json:"category"`
	Purchases int    `json:"purchases"`
}

// ChartEntryDTO is one calendar day of the revenue chart.
type ChartEntryDTO struct {
	Date         string `json:"date"`
	RevenueBase  string `json:"revenueBase"`
	RevenueUSD   string `json:"revenueUsd"`
	Transactions int    `json:"transactions"`
}

// TrendsDTO is the named-period trend report.
type TrendsDTO struct {
	Period                string          `json:"period"`
	Days                  []TrendPointDTO `json:"days"`
	TotalVolume           string          `json:"totalVolume"`
	TotalTransactions     int             `json:"totalTransactions"`
	AvgVolumePerDay       string          `json:"avgVolumePerDay"`
	AvgTransactionsPerDay int             `json:"avgTransactionsPerDay"`
}

type TrendPointDTO struct {
	Date          string `json:"date"`
	Volume        string `json:"volume"`
	Transactions  int    `json:"transactions"`
	UniqueBuyers  int    `json:"uniqueBuyers"`
	UniqueSellers int    `json:"uniqueSellers"`
}

// TopItemDTO is one entry of the top-performer ranking.
type TopItemDTO struct {
	ItemID       string `json:"itemId"`
	Name         string `json:"name,omitempty"`
	Category     string `json:"category,omitempty"`
	Sales        int    `json:"sales"`
	Revenue      string `json:"revenue"`
	AveragePrice string `json:"averagePrice"`
}

// ReconciledRevenueDTO is the merged revenue report.
type ReconciledRevenueDTO struct {
	Reported        string `json:"reported"`
	LedgerRevenue   string `json:"ledgerRevenue"`
	LedgerTxCount   int    `json:"ledgerTxCount"`
	ChainRevenue    string `json:"chainRevenue,omitempty"`
	ChainTxCount    int    `json:"chainTxCount,omitempty"`
	ContractBalance string `json:"contractBalance,omitempty"`
	ChainAvailable  bool   `json:"chainAvailable"`
	Divergent       bool   `json:"divergent"`
	WindowStart     string `json:"windowStart,omitempty"`
	FromBlock       uint64 `json:"fromBlock,omitempty"`
	ToBlock         uint64 `json:"toBlock,omitempty"`
	GeneratedAt     string `json:"generatedAt"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPurchaseDTO(p *ledger.Purchase) PurchaseDTO {
	return PurchaseDTO{
		ID:             p.ID,
		ItemID:         p.ItemID,
		BuyerAddress:   string(p.Buyer),
		SellerAddress:  string(p.Seller),
		SettlementHash: string(p.SettlementHash),
		PriceBase:      p.PriceBase.String(),
		PriceToken:     p.PriceToken.String(),
		PriceUSD:       p.PriceUSD,
		Network:        string(p.Network),
		Rail:           string(p.Rail),
		Kind:           string(p.Kind),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             tx.ID,
		SettlementHash: string(tx.SettlementHash),
		Rail:           string(tx.Rail),
		FeeAmount:      tx.FeeAmount.String(),
		FeePercentage:  tx.FeePercentage.String(),
		SellerAmount:   tx.SellerAmount.String(),
		ChainID:        tx.ChainID,
		BlockNumber:    tx.BlockNumber,
		GasUsed:        tx.GasUsed,
		GasPrice:       tx.GasPrice,
		TokenContract:  tx.TokenContract,
		TokenSymbol:    tx.TokenSymbol,
		TokenDecimals:  tx.TokenDecimals,
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.ConfirmedAt != nil {
		dto.ConfirmedAt = tx.ConfirmedAt.Format(time.RFC3339)
	}
	return dto
}

func toReceiptDTO(rec *ledger.Receipt, duplicate bool) ReceiptDTO {
	return ReceiptDTO{
		Purchase:    toPurchaseDTO(&rec.Purchase),
		Transaction: toTransactionDTO(&rec.Transaction),
		Duplicate:   duplicate,
	}
}

func toMarketStatsDTO(s *stats.MarketStats) MarketStatsDTO {
	cats := make([]CategoryCountDTO, len(s.TopCategories))
	for i, c := range s.TopCategories {
		cats[i] = CategoryCountDTO{Category: c.Category, Purchases: c.Purchases}
	}
	return MarketStatsDTO{
		ActiveItems:       s.ActiveItems,
		TotalPurchases:    s.TotalPurchases,
		UniqueBuyers:      s.UniqueBuyers,
		UniqueSellers:     s.UniqueSellers,
		TotalRevenueBase:  s.TotalRevenueBase.String(),
		TotalRevenueToken: s.TotalRevenueToken.String(),
		TopCategories:     cats,
		RecentPurchases:   s.RecentPurchases,
		RecentNewItems:    s.RecentNewItems,
		WindowDays:        s.WindowDays,
	}
}

func toChartDTOs(entries []stats.ChartEntry) []ChartEntryDTO {
	dtos := make([]ChartEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ChartEntryDTO{
			Date:         e.Date,
			RevenueBase:  e.RevenueBase.String(),
			RevenueUSD:   e.RevenueUSD.String(),
			Transactions: e.Transactions,
		}
	}
	return dtos
}

func toTrendsDTO(t *stats.TrendsReport) TrendsDTO {
	days := make([]TrendPointDTO, len(t.Days))
	for i, d := range t.Days {
		days[i] = TrendPointDTO{
			Date:          d.Date,
			Volume:        d.Volume.String(),
			Transactions:  d.Transactions,
			UniqueBuyers:  d.UniqueBuyers,
			UniqueSellers: d.UniqueSellers,
		}
	}
	return TrendsDTO{
		Period:                t.Period,
		Days:                  days,
		TotalVolume:           t.TotalVolume.String(),
		TotalTransactions:     t.TotalTransactions,
		AvgVolumePerDay:       t.AvgVolumePerDay.String(),
		AvgTransactionsPerDay: t.AvgTransactionsPerDay,
	}
}

func toTopItemDTOs(items []stats.TopItem) []TopItemDTO {
	dtos := make([]TopItemDTO, len(items))
	for i, it := range items {
		dtos[i] = TopItemDTO{
			ItemID:       it.ItemID,
			Name:         it.Name,
			Category:     it.Category,
			Sales:        it.Sales,
			Revenue:      it.Revenue.String(),
			AveragePrice: it.AveragePrice.String(),
		}
	}
	return dtos
}

func toReconciledDTO(r *reconcile.Report) ReconciledRevenueDTO {
	dto := ReconciledRevenueDTO{
		Reported:       r.Reported.String(),
		LedgerRevenue:  r.LedgerRevenue.String(),
		LedgerTxCount:  r.LedgerTxCount,
		ChainAvailable: r.ChainAvailable,
		Divergent:      r.Divergent,
		GeneratedAt:    r.GeneratedAt.Format(time.RFC3339),
	}
	if r.ChainAvailable {
		dto.ChainRevenue = r.ChainRevenue.String()
		dto.ChainTxCount = r.ChainTxCount
		dto.ContractBalance = r.ContractBalance.String()
		dto.WindowStart = r.WindowStart.Format(time.RFC3339)
		dto.FromBlock = r.FromBlock
		dto.ToBlock = r.ToBlock
	}
	return dto
}
