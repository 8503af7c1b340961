package model

import (
	"gorm.io/gorm"
)

// Gender 性别
type Gender string

const (
	GenderMale   Gender = "male"   // 男
	GenderFemale Gender = "female" // 女
)

// Member 家族图谱成员节点
//
// SpouseID 是对称关系：A.SpouseID=B 时必须有 B.SpouseID=A。
// 所有写入路径都负责维护双向一致，加载时发现不一致会按 UpdatedAt 修复。
type Member struct {
	gorm.Model
	OwnerID      uint    `gorm:"index;not null" json:"owner_id"`
	Name         string  `gorm:"size:100;not null" json:"name"`
	Gender       Gender  `gorm:"size:10;not null" json:"gender"`
	BirthYear    *int    `json:"birth_year,omitempty"`
	DeathYear    *int    `json:"death_year,omitempty"`
	PhotoURL     string  `gorm:"size:500" json:"photo_url,omitempty"`
	SpouseID     *uint   `json:"spouse_id,omitempty"`
	ParentIDs    []uint  `gorm:"serializer:json" json:"parent_ids"`
	ChildrenIDs  []uint  `gorm:"serializer:json" json:"children_ids"`
	PosX         float64 `json:"pos_x"`
	PosY         float64 `json:"pos_y"`
	LinkedUserID *uint   `gorm:"index" json:"linked_user_id,omitempty"`
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}

// HasParent 判断是否已有指定父母
func (m *Member) HasParent(id uint) bool {
	return containsID(m.ParentIDs, id)
}

// HasChild 判断是否已有指定子女
func (m *Member) HasChild(id uint) bool {
	return containsID(m.ChildrenIDs, id)
}

// RelationType 亲属称谓类型
type RelationType string

const (
	RelationFather      RelationType = "father"      // 父亲
	RelationMother      RelationType = "mother"      // 母亲
	RelationSpouse      RelationType = "spouse"      // 配偶
	RelationSon         RelationType = "son"         // 儿子
	RelationDaughter    RelationType = "daughter"    // 女儿
	RelationBrother     RelationType = "brother"     // 兄弟
	RelationSister      RelationType = "sister"      // 姐妹
	RelationGrandfather RelationType = "grandfather" // 祖父
	RelationGrandmother RelationType = "grandmother" // 祖母
	RelationOther       RelationType = "other"       // 其他
)

// Relative 个人亲属记录（非图谱的简单添加亲属流程）
type Relative struct {
	gorm.Model
	UserID           uint         `gorm:"index;not null" json:"user_id"`
	Name             string       `gorm:"size:100;not null" json:"name"`
	RelationType     RelationType `gorm:"size:20;not null" json:"relation_type"`
	ParentRelativeID *uint        `json:"parent_relative_id,omitempty"`
	Gender           Gender       `gorm:"size:10" json:"gender,omitempty"`
	AvatarURL        string       `gorm:"size:500" json:"avatar_url,omitempty"`
}

// TableName 指定表名
func (Relative) TableName() string {
	return "relatives"
}

// ValidRelationType 校验亲属称谓是否合法
func ValidRelationType(t RelationType) bool {
	switch t {
	case RelationFather, RelationMother, RelationSpouse, RelationSon, RelationDaughter,
		RelationBrother, RelationSister, RelationGrandfather, RelationGrandmother, RelationOther:
		return true
	}
	return false
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
