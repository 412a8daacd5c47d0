// Package engine derives the visible page of carts from a collection and a view state.
// Every function here is pure: inputs are never mutated.
package engine

import (
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"cart-service/models"
)

const PageSize = 5

type DerivedView struct {
	Visible            []models.CartRecord
	TotalFilteredCount int
	TotalPages         int
	Page               int
	Expanded           []int
}

// Filter 按购物车ID或商品标题过滤（不区分大小写）
func Filter(carts []models.CartRecord, search string) []models.CartRecord {
	needle := strings.ToLower(search)
	out := make([]models.CartRecord, 0, len(carts))
	for _, cart := range carts {
		if matches(cart, needle) {
			out = append(out, cart)
		}
	}
	return out
}

func matches(cart models.CartRecord, needle string) bool {
	if strings.Contains(strconv.Itoa(cart.ID), needle) {
		return true
	}
	for _, p := range cart.Products {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			return true
		}
	}
	return false
}

// Sort 稳定排序，相同值保持原有顺序
func Sort(carts []models.CartRecord, field models.SortField, order models.SortOrder) []models.CartRecord {
	out := slices.Clone(carts)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := sortValue(out[i], field), sortValue(out[j], field)
		if order == models.SortAsc {
			return a < b
		}
		return a > b
	})
	return out
}

func sortValue(cart models.CartRecord, field models.SortField) float64 {
	switch field {
	case models.SortByDiscountedTotal:
		return cart.DiscountedTotal
	case models.SortByTotalProducts:
		return float64(cart.TotalProducts)
	default:
		return cart.Total
	}
}

// TotalPages is zero for an empty result, which callers render as "no results".
func TotalPages(n, pageSize int) int {
	if n <= 0 || pageSize <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Paginate does not clamp page; out-of-range pages yield an empty slice.
func Paginate(carts []models.CartRecord, page, pageSize int) []models.CartRecord {
	if page < 1 || pageSize <= 0 {
		return []models.CartRecord{}
	}
	start := (page - 1) * pageSize
	if start >= len(carts) {
		return []models.CartRecord{}
	}
	end := min(start+pageSize, len(carts))
	return slices.Clone(carts[start:end])
}

// ToggleExpanded returns a new sorted set with id's membership flipped.
func ToggleExpanded(expanded []int, id int) []int {
	out := make([]int, 0, len(expanded)+1)
	found := false
	for _, v := range expanded {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func IsExpanded(expanded []int, id int) bool {
	return slices.Contains(expanded, id)
}

func Derive(carts []models.CartRecord, state models.ViewState) DerivedView {
	sorted := Sort(Filter(carts, state.Search), state.SortField, state.SortOrder)
	expanded := slices.Clone(state.Expanded)
	if expanded == nil {
		expanded = []int{}
	}
	return DerivedView{
		Visible:            Paginate(sorted, state.Page, PageSize),
		TotalFilteredCount: len(sorted),
		TotalPages:         TotalPages(len(sorted), PageSize),
		Page:               state.Page,
		Expanded:           expanded,
	}
}

func Discount(cart models.CartRecord) float64 {
	return cart.Total - cart.DiscountedTotal
}

// DiscountPercent 折扣百分比，保留一位小数
func DiscountPercent(cart models.CartRecord) float64 {
	if cart.Total == 0 {
		return 0
	}
	return math.Round(Discount(cart)/cart.Total*1000) / 10
}

func Summarize(cart models.CartRecord) models.CartSummary {
	return models.CartSummary{
		Total:           cart.Total,
		Discount:        Discount(cart),
		DiscountPercent: DiscountPercent(cart),
		DiscountedTotal: cart.DiscountedTotal,
	}
}
