package main

import (
	"strconv"

	"github.com/kiranshivaraju/objcounter/internal/store"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func storeFilterAll() store.ResultFilter {
	return store.ResultFilter{Page: 1, PerPage: 100}
}
