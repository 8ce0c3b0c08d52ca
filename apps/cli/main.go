// Command portalctl drives the school portal's remote API from a terminal:
// sign in, export and bulk-import notes, check the subscription guard and
// validate guard policy files.
package main

func main() {
	Execute()
}
