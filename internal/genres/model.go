package genres

type CreateGenreRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

type UpdateGenreRequest struct {
	Name       string `json:"name" binding:"required"`
	Code       string `json:"code" binding:"required"`
	IsDisabled bool   `json:"is_disabled"`
}

// Genre はジャンルマスタの1行。BookCount は同名 genre を持つ蔵書数
type Genre struct {
	ID         int64  `db:"id"          json:"id"`
	Name       string `db:"name"        json:"name"`
	Code       string `db:"code"        json:"code"`
	IsDisabled bool   `db:"is_disabled" json:"is_disabled"`
	BookCount  int64  `db:"book_count"  json:"book_count"`
}
