package api

import (
	"net/http"
	"strings"

	"coinledger/internal/economy"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := accountFromContext(r.Context())
	writeOK(w, http.StatusOK, map[string]any{"account_id": id, "balance": s.ledger.GetBalance(id)})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !economy.ValidAccountID(id) {
		writeDomainError(w, economy.ErrInvalidAccount)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"account_id": id, "balance": s.ledger.GetBalance(id)})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.ledger.TransferBalance(r.Context(), accountFromContext(r.Context()), strings.TrimSpace(in.To), in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"transfer": out})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id := accountFromContext(r.Context())
	out := s.ledger.GetTransactionHistory(id, queryLimit(r, 10))
	writeOK(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"stats": s.ledger.GetAccountStats(accountFromContext(r.Context()))})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"rows": s.ledger.TopBalances(queryLimit(r, 10))})
}

func (s *Server) handleBusinessesList(w http.ResponseWriter, r *http.Request) {
	id := accountFromContext(r.Context())
	writeOK(w, http.StatusOK, map[string]any{
		"businesses":     s.ledger.ListBusinesses(id),
		"pending_income": s.ledger.PendingIncome(id),
		"types":          economy.BusinessTypes(),
	})
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type       string `json:"type"`
		Investment int64  `json:"investment"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.ledger.CreateBusiness(r.Context(), accountFromContext(r.Context()), in.Type, in.Investment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"business": out.Business, "balance": out.Balance})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	out, err := s.ledger.CollectBusinessIncome(r.Context(), accountFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"collect": out})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	out, err := s.ledger.UpgradeBusiness(r.Context(), accountFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"upgrade": out})
}

func (s *Server) handleInvestmentsList(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"investments": s.ledger.ListInvestments(accountFromContext(r.Context()))})
}

func (s *Server) handleInvestmentTypes(w http.ResponseWriter, _ *http.Request) {
	types := economy.InvestmentTypes()
	out := make([]map[string]any, 0, len(types))
	for _, t := range types {
		out = append(out, map[string]any{
			"name":           t.Name,
			"rate":           t.Rate,
			"duration_hours": int64(t.Duration.Hours()),
		})
	}
	writeOK(w, http.StatusOK, map[string]any{"types": out})
}

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type   string `json:"type"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.ledger.CreateInvestment(r.Context(), accountFromContext(r.Context()), in.Type, in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"investment": out.Investment, "balance": out.Balance})
}

func (s *Server) handleMarketList(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"items": s.ledger.MarketPrices()})
}

func (s *Server) handleMarketItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.ledger.GetMarketItem(chi.URLParam(r, "item"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"item": item})
}

func (s *Server) handleMarketTrade(buy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Quantity int64 `json:"quantity"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		account, item := accountFromContext(r.Context()), chi.URLParam(r, "item")
		trade := s.ledger.SellToMarket
		if buy {
			trade = s.ledger.BuyFromMarket
		}
		out, err := trade(r.Context(), account, item, in.Quantity)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"trade": out})
	}
}

func (s *Server) handleLottery(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TicketPrice int64 `json:"ticket_price"`
		PrizePool   int64 `json:"prize_pool"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.ledger.CreateLottery(r.Context(), accountFromContext(r.Context()), in.TicketPrice, in.PrizePool)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"lottery": out})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	out, err := s.ledger.ClaimDailyReward(r.Context(), accountFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"daily": out})
}

func (s *Server) handleAdminBalance(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Op     string `json:"op"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	var (
		bal int64
		err error
	)
	switch strings.ToLower(strings.TrimSpace(in.Op)) {
	case "set":
		bal, err = s.ledger.SetBalance(r.Context(), id, in.Amount)
	case "add":
		bal, err = s.ledger.AddBalance(r.Context(), id, in.Amount)
	case "subtract", "sub":
		bal, err = s.ledger.SubtractBalance(r.Context(), id, in.Amount)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "op must be set, add or subtract")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.log.Info("admin balance change", "account", id, "op", in.Op, "amount", in.Amount, "balance", bal)
	writeOK(w, http.StatusOK, map[string]any{"account_id": id, "balance": bal})
}

func (s *Server) handleAdminTick(w http.ResponseWriter, r *http.Request) {
	out, err := s.ledger.TickMarket(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"tick": out})
}

func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	out, err := s.ledger.ProcessMatureInvestments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"sweep": out})
}

func (s *Server) handleAdminPrune(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledger.PruneTransactions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"removed": removed})
}
