package utils

import (
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/parlour-dev/parlour/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// 岗位和所属部门一一对应
var positions = []struct {
	Role       string
	Department string
}{
	{"Hair Stylist", "Hair"},
	{"Nail Technician", "Nails"},
	{"Massage Therapist", "Spa"},
	{"Receptionist", "Front Desk"},
	{"Makeup Artist", "Beauty"},
}

var digits = "0123456789"

// GenerateEmailLocalPart 用姓名拼音的前缀加上随机数字作为邮箱前缀
func GenerateEmailLocalPart(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	local := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		local += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		local += string(digits[rand.Intn(len(digits))])
	}

	return strings.ToLower(local)
}

func GenerateRandomEmployee(emailDomainName string) *domain.Employee {
	name := GenerateRandomChineseName()
	position := positions[rand.Intn(len(positions))]

	return &domain.Employee{
		Name:       name,
		Email:      GenerateEmailLocalPart(name) + "@" + emailDomainName,
		Role:       position.Role,
		Department: position.Department,
		IsActive:   true,
	}
}
