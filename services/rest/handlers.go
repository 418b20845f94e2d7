package rest

import (
	"net/http"
	"strconv"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/model"
	"github.com/labstack/echo/v4"
	"github.com/ordishs/gocore"
)

// SubmitTransactions accepts a list of transaction requests. A single element is submitted as
// a transaction, longer lists as one atomic list.
func (h *HTTP) SubmitTransactions(c echo.Context) error {
	start := gocore.CurrentTime()
	defer restStat.NewStat("SubmitTransactions").AddTime(start)

	var reqs []model.TransactionRequest
	if err := c.Bind(&reqs); err != nil {
		return sendError(c, http.StatusBadRequest, errors.ERR_INVALID_ARGUMENT, "body must be a list of transactions: "+err.Error())
	}

	switch len(reqs) {
	case 0:
		return sendError(c, http.StatusBadRequest, errors.ERR_INVALID_ARGUMENT, "no transactions submitted")
	case 1:
		prometheusRESTRequests.WithLabelValues("transaction").Inc()

		resp := h.coordinator.HandleTransaction(c.Request().Context(), &reqs[0])

		return h.reply(c, resp, func() interface{} { return resp.Transaction })
	default:
		prometheusRESTRequests.WithLabelValues("atomic_list").Inc()

		resp := h.coordinator.HandleAtomicTxList(c.Request().Context(), reqs)

		return h.reply(c, resp, func() interface{} { return resp.Transactions })
	}
}

func (h *HTTP) SendCoins(c echo.Context) error {
	start := gocore.CurrentTime()
	defer restStat.NewStat("SendCoins").AddTime(start)

	prometheusRESTRequests.WithLabelValues("send_coins").Inc()

	req := &model.CoinTransferRequest{}
	if err := c.Bind(req); err != nil {
		return sendError(c, http.StatusBadRequest, errors.ERR_INVALID_ARGUMENT, "invalid coin transfer: "+err.Error())
	}

	resp := h.coordinator.HandleCoinTransfer(c.Request().Context(), req)

	return h.reply(c, resp, func() interface{} { return resp.Transaction })
}

func (h *HTTP) GetEntireHistory(c echo.Context) error {
	start := gocore.CurrentTime()
	defer restStat.NewStat("GetEntireHistory").AddTime(start)

	prometheusRESTRequests.WithLabelValues("history").Inc()

	limit, err := limitParam(c)
	if err != nil {
		return sendError(c, http.StatusBadRequest, errors.ERR_INVALID_ARGUMENT, err.Error())
	}

	resp := h.coordinator.HandleListEntireHistory(c.Request().Context(), limit)

	return h.reply(c, resp, func() interface{} { return resp.Transactions })
}

func (h *HTTP) GetAddressTransactions(c echo.Context) error {
	start := gocore.CurrentTime()
	defer restStat.NewStat("GetAddressTransactions").AddTime(start)

	prometheusRESTRequests.WithLabelValues("address_transactions").Inc()

	limit, err := limitParam(c)
	if err != nil {
		return sendError(c, http.StatusBadRequest, errors.ERR_INVALID_ARGUMENT, err.Error())
	}

	resp := h.coordinator.HandleListAddrTransactions(c.Request().Context(), c.Param("address"), limit)

	return h.reply(c, resp, func() interface{} { return resp.Transactions })
}

func (h *HTTP) GetAddressUTXOs(c echo.Context) error {
	start := gocore.CurrentTime()
	defer restStat.NewStat("GetAddressUTXOs").AddTime(start)

	prometheusRESTRequests.WithLabelValues("address_utxos").Inc()

	resp := h.coordinator.HandleListAddrUTXOs(c.Request().Context(), c.Param("address"))

	return h.reply(c, resp, func() interface{} { return resp.UTXOs })
}

// reply writes the payload of successful responses and of conflicts carrying the original
// payload; anything else becomes an error body.
func (h *HTTP) reply(c echo.Context, resp *model.Response, payload func() interface{}) error {
	if resp == nil {
		return sendError(c, http.StatusInternalServerError, errors.ERR_ERROR, "no response")
	}

	prometheusRESTResponses.WithLabelValues(strconv.Itoa(int(resp.Status))).Inc()

	if resp.OK() || (resp.Status == model.StatusConflict && (resp.Transaction != nil || len(resp.Transactions) > 0)) {
		return c.JSON(int(resp.Status), payload())
	}

	h.logger.Debugf("[REST] %s %s: %d %s", c.Request().Method, c.Request().URL.Path, resp.Status, resp.Reason)

	return sendError(c, int(resp.Status), codeOf(resp.Status), resp.Reason)
}

func limitParam(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return -1, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidArgumentError("limit must be an integer, got %q", raw)
	}

	return limit, nil
}
