package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cart-service/datasource"
	"cart-service/engine"
	"cart-service/middlewares"
	"cart-service/models"
	"cart-service/utils"
)

var (
	sources          map[datasource.Policy]datasource.Source
	viewStateSecret  string
	engineOptions    engine.Options
	revalidateWindow = 60 * time.Second
	logger           = zap.NewNop()
	refreshTrigger   RefreshTrigger
)

// RefreshTrigger 将按需刷新交给消息队列异步处理
type RefreshTrigger interface {
	RequestRefresh(policy datasource.Policy) error
}

var errInvalidViewState = errors.New("invalid view state")

func SetSources(s map[datasource.Policy]datasource.Source) {
	sources = s
}

func SetViewStateSecret(secret string) {
	viewStateSecret = secret
}

func SetEngineOptions(opts engine.Options) {
	engineOptions = opts
}

func SetRevalidateWindow(window time.Duration) {
	revalidateWindow = window
}

func SetRefreshTrigger(t RefreshTrigger) {
	refreshTrigger = t
}

func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

type viewEventRequest struct {
	State string           `json:"state"`
	Event models.ViewEvent `json:"event" binding:"required"`
}

// ListCarts 返回当前页的购物车列表
func ListCarts(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordViewOperation("list", status)
	}()

	src, ok := sourceFor(c)
	if !ok {
		return
	}

	state, err := viewStateFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid view state"})
		return
	}

	data, ok := loadCarts(c, src)
	if !ok {
		return
	}
	respond(c, src.Policy(), data, state)
}

// ApplyViewEvent 处理界面交互事件（搜索、排序、翻页、展开）
func ApplyViewEvent(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordViewOperation("event", status)
	}()

	src, ok := sourceFor(c)
	if !ok {
		return
	}

	var request viewEventRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !request.Event.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event type"})
		return
	}

	state := models.DefaultViewState()
	if request.State != "" {
		parsed, err := utils.ParseViewState(request.State, viewStateSecret)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid view state"})
			return
		}
		state = parsed
	}

	data, ok := loadCarts(c, src)
	if !ok {
		return
	}

	current := engine.Derive(data.Carts, state)
	next, err := engine.Apply(state, request.Event, current.TotalPages, engineOptions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respond(c, src.Policy(), data, next)
}

// GetRawCart 返回单个购物车的原始记录
func GetRawCart(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordViewOperation("raw", status)
	}()

	src, ok := sourceFor(c)
	if !ok {
		return
	}

	cartID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart ID"})
		return
	}

	data, ok := loadCarts(c, src)
	if !ok {
		return
	}
	for _, cart := range data.Carts {
		if cart.ID == cartID {
			c.JSON(http.StatusOK, cart)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
}

// RevalidateCarts 按需刷新缓存快照；配置了消息队列时异步排队
func RevalidateCarts(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordViewOperation("revalidate", status)
	}()

	src, ok := sourceFor(c)
	if !ok {
		return
	}
	rv, ok := src.(datasource.Revalidator)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Render mode has no cached snapshot"})
		return
	}

	if refreshTrigger != nil {
		if err := refreshTrigger.RequestRefresh(src.Policy()); err != nil {
			logger.Error("queue refresh failed", zap.String("mode", string(src.Policy())), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not queue revalidation"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
		return
	}

	if err := rv.Refresh(c.Request.Context()); err != nil {
		logger.Error("refresh failed", zap.String("mode", string(src.Policy())), zap.NamedError("cause", errors.Unwrap(err)))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Error Loading Carts", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revalidated"})
}

func sourceFor(c *gin.Context) (datasource.Source, bool) {
	src, ok := sources[datasource.Policy(c.Param("mode"))]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown render mode"})
		return nil, false
	}
	return src, true
}

func loadCarts(c *gin.Context, src datasource.Source) (*models.CartsResponse, bool) {
	data, err := src.Carts(c.Request.Context())
	if err != nil {
		fields := []zap.Field{
			zap.String("mode", string(src.Policy())),
			zap.String("request_id", c.GetString("requestID")),
			zap.NamedError("cause", errors.Unwrap(err)),
		}
		var fe *datasource.FetchError
		if errors.As(err, &fe) {
			fields = append(fields, zap.Int("upstream_status", fe.StatusCode))
		}
		logger.Error("fetch carts failed", fields...)
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Error Loading Carts", "message": err.Error()})
		return nil, false
	}
	return data, true
}

func respond(c *gin.Context, policy datasource.Policy, data *models.CartsResponse, state models.ViewState) {
	view := engine.Derive(data.Carts, state)

	token, err := utils.SignViewState(state, viewStateSecret, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not sign view state"})
		return
	}

	carts := make([]models.CartView, 0, len(view.Visible))
	for _, cart := range view.Visible {
		cv := models.CartView{
			CartRecord: cart,
			Summary:    engine.Summarize(cart),
			Expanded:   engine.IsExpanded(view.Expanded, cart.ID),
		}
		if cv.Expanded {
			if raw, err := json.Marshal(cart); err == nil {
				cv.Raw = raw
			}
		}
		carts = append(carts, cv)
	}

	c.Header("Cache-Control", cacheControl(policy))
	c.JSON(http.StatusOK, models.CartListResponse{
		RenderMode:    policy.RenderMode(),
		View:          state,
		State:         token,
		Carts:         carts,
		Showing:       len(carts),
		TotalFiltered: view.TotalFilteredCount,
		TotalPages:    view.TotalPages,
		PageSize:      engine.PageSize,
		Expanded:      view.Expanded,
	})
}

func cacheControl(policy datasource.Policy) string {
	if policy == datasource.PolicyStatic {
		seconds := int(revalidateWindow.Seconds())
		return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", seconds, seconds)
	}
	return "no-store"
}

// viewStateFromQuery 签名令牌优先，其次是查询参数；非法参数使用默认值
func viewStateFromQuery(c *gin.Context) (models.ViewState, error) {
	if token := c.Query("state"); token != "" {
		state, err := utils.ParseViewState(token, viewStateSecret)
		if err != nil {
			return models.ViewState{}, errInvalidViewState
		}
		return state, nil
	}

	state := models.DefaultViewState()
	state.Search = c.Query("search")
	state.SortField = models.SortField(c.DefaultQuery("sortField", string(state.SortField)))
	state.SortOrder = models.SortOrder(strings.ToLower(c.DefaultQuery("sortOrder", string(state.SortOrder))))
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		state.Page = page
	}
	for _, part := range strings.Split(c.Query("expanded"), ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && !engine.IsExpanded(state.Expanded, id) {
			state.Expanded = engine.ToggleExpanded(state.Expanded, id)
		}
	}
	return utils.Normalize(state), nil
}
