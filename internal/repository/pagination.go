package repository

import "gorm.io/gorm"

// paginate applies offset/limit. A non-positive pageSize returns every row.
func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}

// countAndPage counts the filtered rows and then applies pagination.
func countAndPage(query *gorm.DB, page, pageSize int) (*gorm.DB, int64, error) {
	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return paginate(query, page, pageSize), total, nil
}
