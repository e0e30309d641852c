// Draw history HTTP handlers.
//
//   - GET /groups/{id}/fortunes   (fortunes drawn on a day, paginated)
//   - GET /groups/{id}/lottery    (lottery records of a day, paginated)
//   - GET /fortune/weights        (the weight table)
//
// The date query parameter uses the record layout (YYYY-MM-DD) and defaults
// to the bot's current day, which is echoed in the response.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/utils"
)

// ListFortunesResponse wraps a page of fortune records.
type ListFortunesResponse struct {
	GroupID    int64                  `json:"group_id"`
	Date       string                 `json:"date"`
	Fortunes   []domain.FortuneRecord `json:"fortunes"`
	Pagination Pagination             `json:"pagination"`
}

// ListLotteryResponse wraps a page of lottery records.
type ListLotteryResponse struct {
	GroupID    int64                  `json:"group_id"`
	Date       string                 `json:"date"`
	Records    []domain.LotteryRecord `json:"records"`
	Pagination Pagination             `json:"pagination"`
}

// WeightsResponse is the fortune weight table and its total weight.
type WeightsResponse struct {
	Weights []domain.FortuneWeight `json:"weights"`
	Total   int                    `json:"total"`
}

// historyQuery validates the group id and date shared by the history
// endpoints and returns the clamped pagination. A missing date is returned
// empty; callers substitute the reader's current day.
func historyQuery(c *gin.Context) (gid int64, date string, page, size int, valid bool) {
	gid, valid = groupID(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group id must be a positive integer")
		return 0, "", 0, 0, false
	}
	date = c.Query("date")
	if date != "" {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
			return 0, "", 0, 0, false
		}
	}
	page, size = utils.ClampPage(c.Query("page"), c.Query("page_size"))
	return gid, date, page, size, true
}

func paginationOf(total, page, size, totalPages int) Pagination {
	return Pagination{
		Page:       page,
		PageSize:   size,
		Total:      int64(total),
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// ListFortunes returns the fortunes drawn in a group on one day.
func (h *Handlers) ListFortunes(c *gin.Context) {
	gid, date, page, size, valid := historyQuery(c)
	if !valid {
		return
	}
	if date == "" {
		date = h.fortune.Day()
	}
	all, err := h.fortune.ListDay(c.Request.Context(), gid, date)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, totalPages := utils.Paginate(all, page, size)
	ok(c, http.StatusOK, ListFortunesResponse{
		GroupID:    gid,
		Date:       date,
		Fortunes:   items,
		Pagination: paginationOf(len(all), page, size, totalPages),
	})
}

// ListLottery returns the lottery records of a group on one day.
func (h *Handlers) ListLottery(c *gin.Context) {
	gid, date, page, size, valid := historyQuery(c)
	if !valid {
		return
	}
	if date == "" {
		date = h.lottery.Day()
	}
	all, err := h.lottery.ListDay(c.Request.Context(), gid, date)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, totalPages := utils.Paginate(all, page, size)
	ok(c, http.StatusOK, ListLotteryResponse{
		GroupID:    gid,
		Date:       date,
		Records:    items,
		Pagination: paginationOf(len(all), page, size, totalPages),
	})
}

// FortuneWeights returns the weight table, seeding the defaults if needed.
func (h *Handlers) FortuneWeights(c *gin.Context) {
	ws, err := h.fortune.WeightTable(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	total := 0
	for _, w := range ws {
		total += w.Weight
	}
	ok(c, http.StatusOK, WeightsResponse{Weights: ws, Total: total})
}
