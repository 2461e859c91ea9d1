package fallback

type destination struct {
	country string
	cities  []string
}

var originCities = []string{
	"São Paulo, SP",
	"Rio de Janeiro, RJ",
	"Belo Horizonte, MG",
	"Porto Alegre, RS",
	"Curitiba, PR",
	"Salvador, BA",
	"Brasília, DF",
	"Recife, PE",
	"Fortaleza, CE",
	"Campinas, SP",
	"Florianópolis, SC",
	"Goiânia, GO",
	"João Pessoa, PB",
	"Vitória, ES",
	"Manaus, AM",
}

var destinations = []destination{
	{"Canadá", []string{"Toronto", "Vancouver", "Montreal", "Calgary", "Ottawa"}},
	{"Estados Unidos", []string{"Nova York", "Los Angeles", "Boston", "Chicago", "Miami"}},
	{"Reino Unido", []string{"Londres", "Manchester", "Liverpool", "Edinburgh", "Brighton"}},
	{"Austrália", []string{"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide"}},
	{"Irlanda", []string{"Dublin", "Cork", "Galway", "Limerick", "Waterford"}},
	{"França", []string{"Paris", "Lyon", "Marseille", "Nice", "Toulouse"}},
	{"Alemanha", []string{"Berlim", "Munique", "Hamburgo", "Colônia", "Frankfurt"}},
	{"Espanha", []string{"Madri", "Barcelona", "Valencia", "Sevilha", "Bilbao"}},
}

var schools = []string{
	"University of Toronto",
	"UCLA - University of California",
	"London School of Economics",
	"University of Sydney",
	"Trinity College Dublin",
	"Sorbonne University",
	"Technical University of Munich",
	"Universidad Complutense Madrid",
	"McGill University",
	"King's College London",
	"RMIT University",
	"University College Dublin",
	"Sciences Po Paris",
	"Free University of Berlin",
	"Universidad de Barcelona",
}

var airlines = []string{
	"LATAM Airlines",
	"GOL Linhas Aéreas",
	"Azul Linhas Aéreas",
	"TAP Air Portugal",
	"Air France",
	"Lufthansa",
	"British Airways",
	"Air Canada",
	"United Airlines",
	"Emirates",
}

var interests = []string{
	"Fotografia", "Culinária", "Música", "Cinema", "Literatura", "Arte",
	"Viagens", "Esportes", "Tecnologia", "Moda", "Games", "Dança",
	"Teatro", "Natureza", "Aventura", "Idiomas", "História", "Ciência",
	"Voluntariado", "Empreendedorismo", "Yoga", "Meditação", "Podcast",
	"Blog", "Vlog", "Redes Sociais", "Marketing", "Design",
}

var bios = []string{
	"Estudante de marketing apaixonada por fotografia e viagens. Sempre em busca de novas culturas!",
	"Futuro engenheiro que adora tecnologia e games. Vamos explorar a cidade juntos?",
	"Amante da culinária e da música. Que tal descobrirmos os melhores restaurantes locais?",
	"Artista em formação com paixão por museus e galerias. Adoro fazer novos amigos!",
	"Esportista e aventureiro. Sempre disposto a explorar trilhas e atividades ao ar livre.",
	"Bookworm e cinéfila. Vamos trocar dicas de livros e filmes locais?",
	"Empreendedor em formação interessado em networking e novas oportunidades.",
	"Estudante de idiomas que adora conversar e praticar. Coffee chat anyone?",
	"Designer criativo sempre em busca de inspiração arquitetônica e artística.",
	"Voluntário ativo procurando formas de contribuir com a comunidade local.",
}

var names = []string{
	"Ana Silva", "Bruno Santos", "Carla Oliveira", "Diego Costa", "Elena Rodrigues",
	"Felipe Lima", "Gabriela Ferreira", "Henrique Alves", "Isabela Martins", "João Pereira",
	"Karina Souza", "Lucas Barbosa", "Mariana Gomes", "Nicolas Ribeiro", "Olivia Campos",
	"Pedro Nascimento", "Rafaela Torres", "Samuel Cardoso", "Tatiana Rocha", "Victor Moreira",
}

var photos = []string{
	"https://images.unsplash.com/photo-1494790108755-2616b612b47c?w=150&h=150&fit=crop&crop=face",
	"https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=150&h=150&fit=crop&crop=face",
}

// Tip is a hint shown to users exploring demo mode.
type Tip struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

var tips = []Tip{
	{"💡 Dica da Demo", "Todos os perfis são simulados, mas o sistema de busca é totalmente funcional!"},
	{"🚀 Quer usar dados reais?", "Configure o backend para começar a usar com dados reais."},
	{"📱 WhatsApp Demo", "Os links do WhatsApp na demo redirecionam para uma conversa com o suporte."},
	{"🔐 Segurança", "Na versão real, todos os contatos são verificados e seguros."},
	{"🎭 Persistência Demo", "Suas credenciais ficam salvas localmente até você limpar os dados demo."},
}

var successMessages = []string{
	"🎉 Encontramos 12 intercambistas compatíveis!",
	"✨ Ótimos resultados! Veja os perfis mais compatíveis.",
	"🔥 Matches perfeitos encontrados para sua viagem!",
	"🎯 Resultados personalizados baseados no seu perfil.",
	"🌟 Conecte-se com outros intercambistas agora!",
}

// Stats are the headline numbers of the demo landing page.
type Stats struct {
	TotalUsers           int `json:"total_users"`
	ActiveSearches       int `json:"active_searches"`
	SuccessfulMatches    int `json:"successful_matches"`
	CountriesAvailable   int `json:"countries_available"`
	CitiesAvailable      int `json:"cities_available"`
	UniversitiesPartners int `json:"universities_partners"`
}

var stats = Stats{
	TotalUsers:           1250,
	ActiveSearches:       89,
	SuccessfulMatches:    340,
	CountriesAvailable:   25,
	CitiesAvailable:      150,
	UniversitiesPartners: 500,
}
