package depot

import (
	"bytes"
	"fmt"
)

func Example() {
	storage := Factory.NewStorage()

	movers, _ := storage.NewEntities(2, posComp, velComp)
	for i, e := range movers {
		vel, _ := velComp.GetFromEntity(storage, e)
		vel.X = float64(i + 1)
	}

	// One integration step over every entity with both components.
	integrate := NewNativeSystem("integrate", []Component{posComp, velComp}, nil,
		func(ctx *SystemContext) error {
			pos := posComp.GetFromCursor(ctx.Cursor())
			vel := velComp.GetFromCursor(ctx.Cursor())
			pos.X += vel.X
			pos.Y += vel.Y
			return nil
		})
	if _, err := Invoke(storage, integrate); err != nil {
		fmt.Println(err)
		return
	}

	// Persist and reload the population.
	var buf bytes.Buffer
	if err := Save(storage, &buf); err != nil {
		fmt.Println(err)
		return
	}
	loaded, err := Load(&buf)
	if err != nil {
		fmt.Println(err)
		return
	}

	node, _ := Factory.NewSignatureQuery([]Component{posComp}, nil)
	cursor := Factory.NewCursor(node, loaded)
	for cursor.Next() {
		fmt.Printf("position (%.0f, %.0f)\n", posComp.GetFromCursor(cursor).X, posComp.GetFromCursor(cursor).Y)
	}
	// Output:
	// position (1, 0)
	// position (2, 0)
}
