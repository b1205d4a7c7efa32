package core

const (
	DefPageLimit = 30
	MaxPageLimit = 200
)

// Paging parameters, bound from query string or json.
type Paging struct {
	Limit int `json:"limit" form:"limit"`
	Page  int `json:"page" form:"page"`
	Total int `json:"total" form:"-"`
}

// Page of results.
type PageRes[T any] struct {
	Page    Paging `json:"paging"`
	Payload []T    `json:"payload"`
}

func (p Paging) GetPage() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

func (p Paging) GetOffset() int {
	return (p.GetPage() - 1) * p.GetLimit()
}

func (p Paging) GetLimit() int {
	if p.Limit < 1 {
		return DefPageLimit
	}
	if p.Limit > MaxPageLimit {
		return MaxPageLimit
	}
	return p.Limit
}

func (p Paging) ToRespPage(total int) Paging {
	return RespPage(p, total)
}

/* Build Paging for response */
func RespPage(reqPage Paging, total int) Paging {
	return Paging{
		Limit: reqPage.GetLimit(),
		Page:  reqPage.GetPage(),
		Total: total,
	}
}
