package jsonrpc

import (
	"strconv"

	"github.com/creachadair/jrpc2"

	"capledger/replay"
	"capledger/store"
	"capledger/types"
	"capledger/utils"
)

// Height sentinels accepted on the wire for events.query ranges.
const (
	heightEarliest = "earliest"
	heightLatest   = "latest"
)

// --- Params/Results ---

type transferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"` // displayed units
}

type mintParams struct {
	Minter string `json:"minter"`
	To     string `json:"to"`
	Amount string `json:"amount"` // base units
}

type setAllowlistParams struct {
	Approver string `json:"approver"`
	Account  string `json:"account"`
	Approved bool   `json:"approved"`
}

type executeSplitParams struct {
	Admin  string `json:"admin"`
	Factor uint64 `json:"factor"`
}

type changeSymbolParams struct {
	Admin  string `json:"admin"`
	Symbol string `json:"symbol"`
}

type roleParams struct {
	Admin   string `json:"admin"`
	Role    string `json:"role"`
	Grantee string `json:"grantee"`
}

type submitResponse struct {
	Ok    bool       `json:"ok"`
	Event *eventInfo `json:"event"`
}

func newSubmitResponse(ev *types.LedgerEvent) *submitResponse {
	return &submitResponse{Ok: true, Event: newEventInfo(ev)}
}

type eventInfo struct {
	Height     uint64 `json:"height"`
	Sequence   uint64 `json:"sequence"`
	Kind       string `json:"kind"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Account    string `json:"account,omitempty"`
	Approved   bool   `json:"approved,omitempty"`
	Factor     uint64 `json:"factor,omitempty"`
	Multiplier uint64 `json:"multiplier,omitempty"`
	OldSymbol  string `json:"old_symbol,omitempty"`
	NewSymbol  string `json:"new_symbol,omitempty"`
	Role       string `json:"role,omitempty"`
	Grantee    string `json:"grantee,omitempty"`
}

func newEventInfo(ev *types.LedgerEvent) *eventInfo {
	info := &eventInfo{
		Height:     ev.Height,
		Sequence:   ev.Sequence,
		Kind:       string(ev.Kind),
		From:       ev.From,
		To:         ev.To,
		Account:    ev.Account,
		Approved:   ev.Approved,
		Factor:     ev.Factor,
		Multiplier: ev.Multiplier,
		OldSymbol:  ev.OldSymbol,
		NewSymbol:  ev.NewSymbol,
		Role:       string(ev.Role),
		Grantee:    ev.Grantee,
	}
	if ev.Amount != nil {
		info.Amount = ev.Amount.Dec()
	}
	return info
}

type getCapTableParams struct {
	// Height is a decimal height string; empty means current.
	Height string `json:"height,omitempty"`
}

func (p getCapTableParams) resolveHeight() (uint64, error) {
	if p.Height == "" || p.Height == heightLatest {
		return replay.HeightCurrent, nil
	}
	height, err := strconv.ParseUint(p.Height, 10, 64)
	if err != nil {
		return 0, jrpc2.Errorf(jrpc2.InvalidParams, "invalid height %q", p.Height)
	}
	return height, nil
}

type capTableResponse struct {
	LedgerID     string       `json:"ledger_id"`
	Height       uint64       `json:"height"`
	Timestamp    string       `json:"timestamp"`
	Symbol       string       `json:"symbol"`
	Multiplier   uint64       `json:"multiplier"`
	TotalSupply  string       `json:"total_supply"`
	Holders      []holderInfo `json:"holders"`
	RoundingNote string       `json:"rounding_note,omitempty"`
}

type holderInfo struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	Percentage string `json:"percentage"`
}

func newCapTableResponse(snapshot *types.CapTableSnapshot) *capTableResponse {
	holders := make([]holderInfo, len(snapshot.Holders))
	for i, h := range snapshot.Holders {
		holders[i] = holderInfo{
			Address:    h.Address,
			Balance:    h.Balance.Dec(),
			Percentage: h.Percentage,
		}
	}
	return &capTableResponse{
		LedgerID:     snapshot.LedgerID,
		Height:       snapshot.Height,
		Timestamp:    snapshot.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Symbol:       snapshot.Symbol,
		Multiplier:   snapshot.Multiplier,
		TotalSupply:  utils.Uint256ToString(snapshot.TotalSupply),
		Holders:      holders,
		RoundingNote: snapshot.RoundingNote,
	}
}

type queryEventsParams struct {
	Kind       string `json:"kind,omitempty"`
	FromHeight string `json:"from_height,omitempty"`
	ToHeight   string `json:"to_height,omitempty"`
}

func (p queryEventsParams) toFilter() (store.EventFilter, error) {
	filter := store.EventFilter{
		FromHeight: store.HeightEarliest,
		ToHeight:   store.HeightLatest,
	}

	if p.Kind != "" {
		kind := types.EventKind(p.Kind)
		if !types.ValidEventKind(kind) {
			return filter, jrpc2.Errorf(jrpc2.InvalidParams, "unknown event kind %q", p.Kind)
		}
		filter.Kind = kind
	}

	if p.FromHeight != "" && p.FromHeight != heightEarliest {
		from, err := strconv.ParseUint(p.FromHeight, 10, 64)
		if err != nil {
			return filter, jrpc2.Errorf(jrpc2.InvalidParams, "invalid from_height %q", p.FromHeight)
		}
		filter.FromHeight = from
	}
	if p.ToHeight != "" && p.ToHeight != heightLatest {
		to, err := strconv.ParseUint(p.ToHeight, 10, 64)
		if err != nil {
			return filter, jrpc2.Errorf(jrpc2.InvalidParams, "invalid to_height %q", p.ToHeight)
		}
		filter.ToHeight = to
	}
	return filter, nil
}

type queryEventsResponse struct {
	TotalCount int          `json:"total_count"`
	Events     []*eventInfo `json:"events"`
}

func newQueryEventsResponse(events []*types.LedgerEvent) *queryEventsResponse {
	infos := make([]*eventInfo, len(events))
	for i, ev := range events {
		infos[i] = newEventInfo(ev)
	}
	return &queryEventsResponse{TotalCount: len(infos), Events: infos}
}

type getAccountParams struct {
	Address string `json:"address"`
}

type getAccountResponse struct {
	Address          string `json:"address"`
	BaseBalance      string `json:"base_balance"`
	DisplayedBalance string `json:"displayed_balance"`
	Allowlisted      bool   `json:"allowlisted"`
}

type ledgerInfoResponse struct {
	LedgerID      string `json:"ledger_id"`
	Symbol        string `json:"symbol"`
	Multiplier    uint64 `json:"multiplier"`
	GenesisHeight uint64 `json:"genesis_height"`
	CurrentHeight uint64 `json:"current_height"`
}
