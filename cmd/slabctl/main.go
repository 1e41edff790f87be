// Command slabctl plans, benchmarks and stress-tests slab pools.
package main

func main() {
	execute()
}
