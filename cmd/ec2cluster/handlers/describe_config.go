package handlers

import "fmt"

// DescribeConfig handles the describe-config command.
func DescribeConfig() error {
	fmt.Print(renderSchema())
	return nil
}
