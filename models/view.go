package models

type SortField string

const (
	SortByTotal           SortField = "total"
	SortByDiscountedTotal SortField = "discountedTotal"
	SortByTotalProducts   SortField = "totalProducts"
)

func (f SortField) Valid() bool {
	switch f {
	case SortByTotal, SortByDiscountedTotal, SortByTotalProducts:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// ViewState 用户界面状态，只由用户交互修改
type ViewState struct {
	Search    string    `json:"search"`
	SortField SortField `json:"sortField"`
	SortOrder SortOrder `json:"sortOrder"`
	Page      int       `json:"page"`
	Expanded  []int     `json:"expanded"`
}

func DefaultViewState() ViewState {
	return ViewState{
		SortField: SortByTotal,
		SortOrder: SortDesc,
		Page:      1,
		Expanded:  []int{},
	}
}

type EventType string

const (
	EventSearch    EventType = "search"
	EventSortField EventType = "sort_field"
	EventSortOrder EventType = "sort_order"
	EventPage      EventType = "page"
	EventPrev      EventType = "prev"
	EventNext      EventType = "next"
	EventToggle    EventType = "toggle"
)

func (t EventType) Valid() bool {
	switch t {
	case EventSearch, EventSortField, EventSortOrder, EventPage, EventPrev, EventNext, EventToggle:
		return true
	}
	return false
}

// ViewEvent 界面交互事件。Value 的含义取决于 Type：
// search/sort_field/sort_order 使用 Value，page/toggle 使用 Number
type ViewEvent struct {
	Type   EventType `json:"type" binding:"required"`
	Value  string    `json:"value"`
	Number int       `json:"number"`
}
