package signal

// =============================================================================
// Phrase Lists
// =============================================================================
//
// All phrases are lower-case and matched by substring containment against the
// normalized message. Extend the lists here; detector control flow does not change.

var premiumVehiclePhrases = []string{
	"land cruiser", "landcruiser", "lexus", "alphard", "vellfire",
	"bmw", "mercedes", "mercy", "benz", "audi", "porsche", "volvo",
	"range rover", "land rover", "jaguar", "mini cooper",
}

// Makes/models with CVT, DCT or hybrid drivetrains that need specialist work.
var complexVehiclePhrases = []string{
	"cvt", "dsg", "dct", "hybrid", "x-trail", "xtrail", "serena", "juke",
	"grand livina", "cr-v", "crv", "outlander", "pajero", "fortuner",
	"innova", "camry", "accord", "harrier",
}

var hotNoGoPhrases = []string{
	"pas panas", "kalau panas", "kalo panas", "klo panas", "saat panas",
	"waktu panas", "udah panas", "sudah panas", "setelah panas", "abis panas",
	"mesin panas", "overheat",
}

var noMovePhrases = []string{
	"tidak bisa jalan", "gak bisa jalan", "ga bisa jalan", "gk bisa jalan",
	"nggak bisa jalan", "ngga bisa jalan", "tdk bisa jalan", "tidak mau jalan",
	"gak mau jalan", "ga mau jalan", "nggak mau jalan", "mogok",
	"tidak bisa maju", "gak bisa maju", "tidak bisa mundur", "gak bisa mundur",
}

var slipPhrases = []string{
	"selip", "slip", "ngelos", "rpm naik tapi", "rpm tinggi tapi", "gas ngempos",
}

var jerkPhrases = []string{
	"nyentak", "menyentak", "hentak", "jedug", "jeduk", "ndut-ndutan",
	"tersendat", "brebet", "gredek",
}

var warningPhrases = []string{
	"check engine", "lampu engine", "lampu indikator", "indikator menyala",
	"lampu at", "lampu kuning", "warning", "kedip",
}

var immediacyPhrases = []string{
	"darurat", "urgent", "segera", "sekarang", "hari ini", "secepatnya",
	"buruan", "cepat", "di jalan", "dijalan", "di tol",
}

var burningPhrases = []string{
	"bau gosong", "gosong", "bau hangus", "hangus", "asap", "berasap",
	"terbakar", "kebakar",
}

// Technical vocabulary that marks a customer who knows what they are describing.
var diagnosticPhrases = []string{
	"transmisi", "gearbox", "kopling", "torque converter", "valve body",
	"solenoid", "atf", "oli matic", "oli transmisi", "obd", "scanner",
	"kode error", "error code", "rpm", "perpindahan gigi", "oper gigi",
	"tcm", "ecu",
}

var negotiationPhrases = []string{
	"diskon", "kemahalan", "mahal", "murah", "nego", "kurangin", "potongan",
	"harga pas", "bisa kurang", "korting",
}

var locationPhrases = []string{
	"lokasi", "alamat", "dimana", "di mana", "maps", "share loc", "sharelok",
	"shareloc", "letak bengkel",
}

var bookingPhrases = []string{
	"booking", "jadwal", "reservasi", "daftar servis", "antri", "antrian",
}

var askedHumanPhrases = []string{
	"admin", "customer service", "operator", "manusia", "telepon", "telpon",
	"bicara dengan orang", "ngobrol sama orang", "hubungi saya", "mekanik langsung",
}

// Router-only phrases.
var towingPhrases = []string{
	"derek", "towing", "car carrier", "gendong",
}

// Whole-message booking keywords for the short-message booking rule.
var bookingExactKeywords = []string{
	"booking", "book", "jadwal", "reservasi", "daftar", "antri",
}
