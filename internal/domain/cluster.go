package domain

// Cluster agrupa categorías temáticamente correlacionadas. Señales del mismo
// cluster en un ciclo tienden a moverse juntas: exponerse a todas a tamaño
// completo es apilar la misma apuesta.
type Cluster string

const (
	ClusterElections     Cluster = "elections"
	ClusterMacro         Cluster = "macro"
	ClusterCrypto        Cluster = "crypto"
	ClusterSports        Cluster = "sports"
	ClusterEntertainment Cluster = "entertainment"
	ClusterMisc          Cluster = "misc"
)

// clusterTable es el mapeo estático categoría → cluster. Es configuración,
// no lógica: no se aprende.
var clusterTable = map[Category]Cluster{
	CategoryPolitics:  ClusterElections,
	CategoryEconomy:   ClusterMacro,
	CategoryCrypto:    ClusterCrypto,
	CategorySports:    ClusterSports,
	CategoryCelebrity: ClusterEntertainment,
	CategoryScience:   ClusterMisc,
	CategoryOther:     ClusterMisc,
}

// ClusterFor devuelve el cluster de correlación de una categoría.
func ClusterFor(cat Category) Cluster {
	if c, ok := clusterTable[cat]; ok {
		return c
	}
	return ClusterMisc
}

// dampenSequence es el factor aplicado a la n-ésima señal de un cluster
// dentro de un ciclo, en orden de llegada (descendente por net edge).
// La señal más fuerte del cluster conserva peso completo.
var dampenSequence = []float64{1.0, 0.9, 0.7}

// dampenFloor se aplica a toda señal más allá de la secuencia.
const dampenFloor = 0.5

// DampenFactor devuelve el factor de descuento para la señal con rank
// (empezando en 0) dentro de su cluster. No creciente con el rank.
func DampenFactor(rank int) float64 {
	if rank < 0 {
		rank = 0
	}
	if rank < len(dampenSequence) {
		return dampenSequence[rank]
	}
	return dampenFloor
}
