package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Students sign up with the register number tacked onto the display name,
// e.g. "Priya S 21CS1042". The number encodes join year and department.
var registerNoPattern = regexp.MustCompile(`\b(\d{2})([A-Za-z]{2,4})(\d{3,5})\b`)

var departmentCodes = map[string]string{
	"CS":   "Computer Science",
	"CSE":  "Computer Science",
	"IT":   "Information Technology",
	"EC":   "Electronics and Communication",
	"ECE":  "Electronics and Communication",
	"EE":   "Electrical and Electronics",
	"EEE":  "Electrical and Electronics",
	"ME":   "Mechanical",
	"MECH": "Mechanical",
	"CE":   "Civil",
	"CIV":  "Civil",
	"AI":   "Artificial Intelligence",
	"AIDS": "AI and Data Science",
	"BT":   "Biotechnology",
	"CHEM": "Chemical",
	"MBA":  "Management Studies",
	"BBA":  "Business Administration",
}

type RegisterInfo struct {
	RegisterNo string
	Name       string
	Department string
	Year       int
}

// ParseRegisterNumber splits a free-text name field into the clean display
// name and whatever the embedded register number reveals. Fields it cannot
// derive stay zero; callers keep existing profile values in that case.
func ParseRegisterNumber(nameField string) RegisterInfo {
	info := RegisterInfo{Name: strings.TrimSpace(nameField)}

	match := registerNoPattern.FindStringSubmatch(nameField)
	if match == nil {
		return info
	}

	info.RegisterNo = match[0]
	info.Name = strings.TrimSpace(strings.Replace(nameField, match[0], "", 1))

	if yy, err := strconv.Atoi(match[1]); err == nil {
		joinYear := 2000 + yy
		if joinYear <= time.Now().Year() {
			// year of study, clamped to a 4 year course
			year := time.Now().Year() - joinYear + 1
			if year > 4 {
				year = 4
			}
			info.Year = year
		}
	}

	if dept, ok := departmentCodes[strings.ToUpper(match[2])]; ok {
		info.Department = dept
	}

	return info
}
