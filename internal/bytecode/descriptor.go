package bytecode

import (
	"errors"
	"fmt"
)

// ErrBadDescriptor 描述符格式错误
var ErrBadDescriptor = errors.New("malformed descriptor")

// ParseMethodDescriptor 拆分方法描述符，返回参数类型和返回类型
//
//	(ILjava/lang/String;[J)V -> [I Ljava/lang/String; [J], V
func ParseMethodDescriptor(desc string) ([]string, string, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	var args []string
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := fieldDescEnd(desc, i)
		if err != nil {
			return nil, "", err
		}
		args = append(args, desc[i:end])
		i = end
	}
	if i >= len(desc)-1 {
		return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	ret := desc[i+1:]
	if ret != "V" {
		end, err := fieldDescEnd(ret, 0)
		if err != nil || end != len(ret) {
			return nil, "", fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
		}
	}
	return args, ret, nil
}

// ValidFieldDescriptor 检查单个字段描述符
func ValidFieldDescriptor(desc string) bool {
	end, err := fieldDescEnd(desc, 0)
	return err == nil && end == len(desc)
}

// fieldDescEnd 返回从 start 开始的字段描述符的结束位置
func fieldDescEnd(desc string, start int) (int, error) {
	i := start
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
	}
	switch desc[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'F', 'J', 'D':
		return i + 1, nil
	case 'L':
		for j := i + 1; j < len(desc); j++ {
			if desc[j] == ';' {
				if j == i+1 {
					break
				}
				return j + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadDescriptor, desc)
}

// DescriptorSize 字段描述符占用的槽位数
func DescriptorSize(desc string) int {
	switch desc {
	case "V":
		return 0
	case "J", "D":
		return 2
	}
	return 1
}

// ArgumentsSize 参数占用的槽位数（不含 this），描述符非法时返回 0
func ArgumentsSize(desc string) int {
	args, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0
	}
	n := 0
	for _, a := range args {
		n += DescriptorSize(a)
	}
	return n
}
