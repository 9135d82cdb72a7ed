package handler

import (
	"net/http"
	"time"

	"swapengine/internal/svc"

	"github.com/zeromicro/go-zero/rest"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			// --- Quote Routes ---
			{
				Method:  http.MethodPost,
				Path:    "/swap/quote",
				Handler: QuoteHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/swap/quotes",
				Handler: QuotesHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/swap/approval",
				Handler: ApprovalHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/swap/strategies",
				Handler: StrategiesHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/swap/status",
				Handler: StatusHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/swap/history",
				Handler: HistoryHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api/"),
		rest.WithTimeout(30000*time.Millisecond),
	)

	// 执行接口需要等待授权、回执与订单轮询，单独放宽超时
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/swap/execute",
				Handler: ExecuteHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api/"),
		rest.WithTimeout(executeTimeout(serverCtx)),
	)
}

func executeTimeout(svcCtx *svc.ServiceContext) time.Duration {
	cow := svcCtx.Config.Swap.CowSwap
	return time.Duration(cow.MaxPollAttempts)*cow.PollInterval + 5*time.Minute
}
