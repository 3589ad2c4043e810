package jsonrpc

import (
	"context"
	"net/http"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"capledger/interfaces"
	"capledger/ledger"
	"capledger/logx"
	"capledger/types"
	"capledger/utils"
)

// Server exposes the mutation, snapshot and event-feed interfaces over
// JSON-RPC 2.0 via HTTP.
type Server struct {
	addr      string
	ledger    *ledger.Ledger
	snapshots interfaces.SnapshotProvider
	feed      interfaces.EventFeed

	bridge     *jhttp.Bridge
	httpServer *http.Server
}

func NewServer(addr string, ld *ledger.Ledger, snapshots interfaces.SnapshotProvider, feed interfaces.EventFeed) *Server {
	return &Server{
		addr:      addr,
		ledger:    ld,
		snapshots: snapshots,
		feed:      feed,
	}
}

func (s *Server) Start() {
	methods := s.buildMethodMap()
	bridge := jhttp.NewBridge(methods, &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	s.bridge = &bridge

	mux := http.NewServeMux()
	mux.Handle("/", s.bridge)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	logx.Info("RPC", "JSON-RPC listening on ", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("RPC", "HTTP server stopped:", err)
		}
	}()
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	if s.bridge != nil {
		s.bridge.Close()
	}
	return err
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		"tx.transfer": handler.New(func(ctx context.Context, p transferParams) (*submitResponse, error) {
			amount, err := utils.StringToUint256(p.Amount)
			if err != nil {
				return nil, invalidAmountError(p.Amount)
			}
			ev, err := s.ledger.Submit(ledger.Transfer{From: p.From, To: p.To, Amount: amount})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"tx.mint": handler.New(func(ctx context.Context, p mintParams) (*submitResponse, error) {
			amount, err := utils.StringToUint256(p.Amount)
			if err != nil {
				return nil, invalidAmountError(p.Amount)
			}
			ev, err := s.ledger.Submit(ledger.Mint{Minter: p.Minter, To: p.To, Amount: amount})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"admin.setallowlist": handler.New(func(ctx context.Context, p setAllowlistParams) (*submitResponse, error) {
			ev, err := s.ledger.Submit(ledger.SetAllowlist{Approver: p.Approver, Account: p.Account, Approved: p.Approved})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"admin.executesplit": handler.New(func(ctx context.Context, p executeSplitParams) (*submitResponse, error) {
			ev, err := s.ledger.Submit(ledger.ExecuteSplit{Admin: p.Admin, Factor: p.Factor})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"admin.changesymbol": handler.New(func(ctx context.Context, p changeSymbolParams) (*submitResponse, error) {
			ev, err := s.ledger.Submit(ledger.ChangeSymbol{Admin: p.Admin, Symbol: p.Symbol})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"admin.grantrole": handler.New(func(ctx context.Context, p roleParams) (*submitResponse, error) {
			ev, err := s.ledger.Submit(ledger.GrantRole{Admin: p.Admin, Role: types.Role(p.Role), Grantee: p.Grantee})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"admin.revokerole": handler.New(func(ctx context.Context, p roleParams) (*submitResponse, error) {
			ev, err := s.ledger.Submit(ledger.RevokeRole{Admin: p.Admin, Role: types.Role(p.Role), Grantee: p.Grantee})
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newSubmitResponse(ev), nil
		}),
		"captable.get": handler.New(func(ctx context.Context, p getCapTableParams) (*capTableResponse, error) {
			height, err := p.resolveHeight()
			if err != nil {
				return nil, err
			}
			snapshot, err := s.snapshots.GetCapTable(ctx, height)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newCapTableResponse(snapshot), nil
		}),
		"events.query": handler.New(func(ctx context.Context, p queryEventsParams) (*queryEventsResponse, error) {
			filter, err := p.toFilter()
			if err != nil {
				return nil, err
			}
			events, err := s.feed.Query(filter)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return newQueryEventsResponse(events), nil
		}),
		"account.get": handler.New(func(ctx context.Context, p getAccountParams) (*getAccountResponse, error) {
			res, err := s.rpcGetAccount(p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		"ledger.info": handler.New(func(ctx context.Context) (*ledgerInfoResponse, error) {
			meta, err := s.ledger.Meta()
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &ledgerInfoResponse{
				LedgerID:      meta.LedgerID,
				Symbol:        meta.Symbol,
				Multiplier:    meta.Multiplier,
				GenesisHeight: meta.GenesisHeight,
				CurrentHeight: meta.CurrentHeight,
			}, nil
		}),
	}
}

func (s *Server) rpcGetAccount(p getAccountParams) (*getAccountResponse, error) {
	account, err := s.ledger.GetAccount(p.Address)
	if err != nil {
		return nil, err
	}
	displayed, err := s.ledger.DisplayedBalance(p.Address)
	if err != nil {
		return nil, err
	}

	res := &getAccountResponse{
		Address:          p.Address,
		BaseBalance:      "0",
		DisplayedBalance: displayed.Dec(),
	}
	if account != nil {
		res.BaseBalance = utils.Uint256ToString(account.BaseBalance)
		res.Allowlisted = account.Allowlisted
	}
	return res, nil
}
