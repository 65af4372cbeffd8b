package indicator

type messages struct {
	heard       string
	success     string
	failure     string
	interrupted string
	quiet       string
}

var english = messages{
	heard:       "Heard",
	success:     "Done",
	failure:     "Failed",
	interrupted: "Interrupted",
	quiet:       "Still working",
}
