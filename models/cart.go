package models

import (
	"encoding/json"
)

type LineItem struct {
	ID                 json.Number `json:"id"`
	Title              string      `json:"title"`
	Price              float64     `json:"price"`
	Quantity           int         `json:"quantity"`
	Total              float64     `json:"total"`
	DiscountPercentage float64     `json:"discountPercentage"`
	DiscountedTotal    float64     `json:"discountedTotal"`
	Thumbnail          string      `json:"thumbnail"`
}

type CartRecord struct {
	ID              int        `json:"id"`
	UserID          int        `json:"userId"`
	Total           float64    `json:"total"`
	DiscountedTotal float64    `json:"discountedTotal"`
	TotalProducts   int        `json:"totalProducts"`
	TotalQuantity   int        `json:"totalQuantity"`
	Products        []LineItem `json:"products"`
}

// CartsResponse 上游接口返回的文档
type CartsResponse struct {
	Carts []CartRecord `json:"carts"`
	Total int          `json:"total"`
	Skip  int          `json:"skip"`
	Limit int          `json:"limit"`
}

// CartSummary 价格汇总（原价、折扣、折后价）
type CartSummary struct {
	Total           float64 `json:"total"`
	Discount        float64 `json:"discount"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountedTotal float64 `json:"discounted_total"`
}

type CartView struct {
	CartRecord
	Summary  CartSummary     `json:"summary"`
	Expanded bool            `json:"expanded"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

type CartListResponse struct {
	RenderMode    string     `json:"render_mode"`
	View          ViewState  `json:"view"`
	State         string     `json:"state"`
	Carts         []CartView `json:"carts"`
	Showing       int        `json:"showing"`
	TotalFiltered int        `json:"total_filtered"`
	TotalPages    int        `json:"total_pages"`
	PageSize      int        `json:"page_size"`
	Expanded      []int      `json:"expanded"`
}
