package main

import (
	"fmt"

	"github.com/xgzlucario/ember/internal/list"
	"github.com/xgzlucario/ember/internal/set"
	"github.com/xgzlucario/ember/internal/zset"
)

type ObjectType byte

const (
	TypeUnknown ObjectType = iota
	TypeString
	TypeList
	TypeSet
	TypeZSet
)

const (
	TTL_FOREVER   = -1
	KEY_NOT_EXIST = -2
)

func (t ObjectType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	}
	return "none"
}

// getObjectType returns the type tag of a stored value.
// Values are always one of []byte, *list.QuickList, *set.Set or *zset.ZSet.
func getObjectType(object any) ObjectType {
	switch object.(type) {
	case []byte:
		return TypeString
	case *list.QuickList:
		return TypeList
	case *set.Set:
		return TypeSet
	case *zset.ZSet:
		return TypeZSet
	}
	panic(fmt.Sprintf("unknown object type: %T", object))
}
