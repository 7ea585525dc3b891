package scans

// PaginatedResult represents a page of stored scans with metadata
type PaginatedResult struct {
	Data       []ScanResult `json:"data"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	Total      int64        `json:"totalItems"`
	TotalPages int          `json:"totalPages"`
}

// Paginate slices list (already ordered) into one page. page is 1-based.
func Paginate(list []ScanResult, page, pageSize int) PaginatedResult {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total := len(list)
	out := PaginatedResult{
		Data:       []ScanResult{},
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(total),
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	// page-1 is compared before multiplying so a huge page cannot overflow
	if page-1 >= (total+pageSize-1)/pageSize {
		return out
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	out.Data = list[start:end]
	return out
}
