package deck

import "math/rand/v2"

// Size is the number of cards in the catalog.
const Size = 54

type Card struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var catalog = [Size]Card{
	{1, "El Gallo"}, {2, "El Diablito"}, {3, "La Dama"}, {4, "El Catrín"},
	{5, "El Paraguas"}, {6, "La Sirena"}, {7, "La Escalera"}, {8, "La Botella"},
	{9, "El Barril"}, {10, "El Árbol"}, {11, "El Melón"}, {12, "El Valiente"},
	{13, "El Gorrito"}, {14, "La Muerte"}, {15, "La Pera"}, {16, "La Bandera"},
	{17, "El Bandolón"}, {18, "El Violoncello"}, {19, "La Garza"}, {20, "El Pájaro"},
	{21, "La Mano"}, {22, "La Bota"}, {23, "La Luna"}, {24, "El Cotorro"},
	{25, "El Borracho"}, {26, "El Negrito"}, {27, "El Corazón"}, {28, "La Sandía"},
	{29, "El Tambor"}, {30, "El Camarón"}, {31, "Las Jaras"}, {32, "El Músico"},
	{33, "La Araña"}, {34, "El Soldado"}, {35, "La Estrella"}, {36, "El Cazo"},
	{37, "El Mundo"}, {38, "El Apache"}, {39, "El Nopal"}, {40, "El Alacrán"},
	{41, "La Rosa"}, {42, "La Calavera"}, {43, "La Campana"}, {44, "El Cantarito"},
	{45, "El Venado"}, {46, "El Sol"}, {47, "La Corona"}, {48, "La Chalupa"},
	{49, "El Pino"}, {50, "El Pescado"}, {51, "La Palma"}, {52, "La Maceta"},
	{53, "El Arpa"}, {54, "La Rana"},
}

// AllCards returns the catalog in id order. The slice is a fresh copy.
func AllCards() []Card {
	out := make([]Card, Size)
	copy(out, catalog[:])
	return out
}

// ShuffledCopy returns a new uniformly shuffled permutation of the catalog.
// A nil source uses the process-wide generator.
func ShuffledCopy(r *rand.Rand) []Card {
	cards := AllCards()
	swap := func(i, j int) { cards[i], cards[j] = cards[j], cards[i] }
	if r == nil {
		rand.Shuffle(len(cards), swap)
	} else {
		r.Shuffle(len(cards), swap)
	}
	return cards
}

func ByID(id int) (Card, bool) {
	if id < 1 || id > Size {
		return Card{}, false
	}
	return catalog[id-1], true
}
